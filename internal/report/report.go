// Package report turns a terminal call session into its summary record
// and persists it off the live call path.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"voicebot/agent/internal/session"
)

// Report is the read-side snapshot produced after a call reaches a
// terminal state.
type Report struct {
	CallID            string    `json:"call_id"`
	Status            string    `json:"status"`
	FinalDecision     string    `json:"final_decision"`
	EscalationReason  string    `json:"escalation_reason,omitempty"`
	AgentID           string    `json:"agent_id,omitempty"`
	MessageCount      int       `json:"message_count"`
	AverageConfidence float64   `json:"average_confidence"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Summary           string    `json:"summary"`
}

// FromSession builds the report for a terminal session. Works from a
// snapshot, so it is safe even against a session still being written.
func FromSession(s *session.CallSession) Report {
	snap := s.Snapshot()
	end := time.Now().UTC()
	if snap.EndTime != nil {
		end = *snap.EndTime
	}
	r := Report{
		CallID:            snap.ID,
		Status:            string(snap.Status),
		FinalDecision:     snap.FinalDecision,
		EscalationReason:  snap.EscalationReason,
		AgentID:           snap.AgentID,
		MessageCount:      len(snap.Messages),
		AverageConfidence: math.Round(snap.AverageConfidence()*100) / 100,
		StartTime:         snap.StartTime,
		EndTime:           end,
	}
	r.Summary = r.buildSummary()
	return r
}

func (r *Report) buildSummary() string {
	duration := int(r.EndTime.Sub(r.StartTime).Seconds())
	var b strings.Builder
	fmt.Fprintf(&b, "Appel %s d'une durée de %d secondes.\n", r.CallID, duration)
	fmt.Fprintf(&b, "Nombre de messages: %d\n", r.MessageCount)
	fmt.Fprintf(&b, "Décision finale: %s\n", r.FinalDecision)
	fmt.Fprintf(&b, "Score moyen de confiance: %.2f", r.AverageConfidence)
	if r.EscalationReason != "" {
		fmt.Fprintf(&b, "\nRaison de l'escalade: %s", r.EscalationReason)
		b.WriteString("\nL'appel a été transféré à un agent humain.")
	}
	return b.String()
}
