package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by the registry for unknown call IDs.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned when a mutation is attempted on a terminal session.
	ErrClosed = errors.New("session already terminal")
	// ErrAttached is returned when a connection tries to claim a call
	// that another connection already owns.
	ErrAttached = errors.New("session already attached")
)

// Status is the lifecycle state of a call. ACTIVE transitions to exactly
// one of ESCALATED or ENDED; both are terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusEscalated Status = "ESCALATED"
	StatusEnded     Status = "ENDED"
)

// ConfidencePoint is one sample of the per-turn global confidence.
type ConfidencePoint struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// CallSession is the mutable record of one conversation. Writes come
// only from the single connection task holding the registry claim; the
// internal lock exists so read-side consumers (API snapshots, reports)
// can observe a consistent state mid-call. All writes go through
// methods so the terminal guard holds everywhere.
type CallSession struct {
	mu sync.RWMutex

	ID                 string            `json:"call_id"`
	Status             Status            `json:"status"`
	Messages           []string          `json:"messages"`
	ClarificationCount int               `json:"clarification_count"`
	CurrentIntent      string            `json:"current_intent,omitempty"`
	GlobalConfidence   float64           `json:"global_confidence"`
	Timeline           []ConfidencePoint `json:"confidence_timeline,omitempty"`
	AgentID            string            `json:"agent_id,omitempty"`
	EscalationReason   string            `json:"escalation_reason,omitempty"`
	FinalDecision      string            `json:"final_decision,omitempty"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            *time.Time        `json:"end_time,omitempty"`
}

// New creates an ACTIVE session. A random call ID is assigned when id
// is empty.
func New(id string) *CallSession {
	if id == "" {
		id = uuid.New().String()
	}
	return &CallSession{
		ID:        id,
		Status:    StatusActive,
		Messages:  []string{},
		Timeline:  []ConfidencePoint{},
		StartTime: time.Now().UTC(),
	}
}

// Terminal reports whether the session reached a terminal status.
func (s *CallSession) Terminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terminal()
}

func (s *CallSession) terminal() bool {
	return s.Status == StatusEscalated || s.Status == StatusEnded
}

// AddMessage appends one turn text. Messages are append-only and never
// truncated.
func (s *CallSession) AddMessage(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrClosed
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

// LastMessage returns the most recent turn text, or "" when the
// transcript is empty.
func (s *CallSession) LastMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1]
}

// RecentMessages returns up to n of the latest turn texts, oldest first.
func (s *CallSession) RecentMessages(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= n {
		return append([]string(nil), s.Messages...)
	}
	return append([]string(nil), s.Messages[len(s.Messages)-n:]...)
}

// SetIntent records the detected intent of the current turn.
func (s *CallSession) SetIntent(intent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrClosed
	}
	s.CurrentIntent = intent
	return nil
}

// RecordClarification bumps the clarification counter. The counter only
// ever goes up within a session.
func (s *CallSession) RecordClarification() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrClosed
	}
	s.ClarificationCount++
	return nil
}

// RecordConfidence stores the latest global confidence and appends it
// to the timeline.
func (s *CallSession) RecordConfidence(score float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrClosed
	}
	s.GlobalConfidence = score
	s.Timeline = append(s.Timeline, ConfidencePoint{At: at, Score: score})
	return nil
}

// Escalate moves the session to ESCALATED and pins the assigned agent.
// Terminal: no further mutation is accepted afterwards.
func (s *CallSession) Escalate(agentID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrClosed
	}
	s.Status = StatusEscalated
	s.AgentID = agentID
	s.EscalationReason = reason
	s.FinalDecision = "AGENT"
	now := time.Now().UTC()
	s.EndTime = &now
	return nil
}

// End moves the session to ENDED. Terminal.
func (s *CallSession) End(finalDecision string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrClosed
	}
	s.Status = StatusEnded
	s.FinalDecision = finalDecision
	now := time.Now().UTC()
	s.EndTime = &now
	return nil
}

// AverageConfidence computes the mean over the confidence timeline.
func (s *CallSession) AverageConfidence() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Timeline) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s.Timeline {
		sum += p.Score
	}
	return sum / float64(len(s.Timeline))
}

// Snapshot returns a point-in-time deep copy safe to serialize outside
// the owning connection task. Slices are copied, not shared.
func (s *CallSession) Snapshot() *CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &CallSession{
		ID:                 s.ID,
		Status:             s.Status,
		Messages:           append(make([]string, 0, len(s.Messages)), s.Messages...),
		ClarificationCount: s.ClarificationCount,
		CurrentIntent:      s.CurrentIntent,
		GlobalConfidence:   s.GlobalConfidence,
		Timeline:           append(make([]ConfidencePoint, 0, len(s.Timeline)), s.Timeline...),
		AgentID:            s.AgentID,
		EscalationReason:   s.EscalationReason,
		FinalDecision:      s.FinalDecision,
		StartTime:          s.StartTime,
	}
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return c
}
