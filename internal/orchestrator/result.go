package orchestrator

import "voicebot/agent/internal/session"

// DecisionType is the outward-facing decision of one turn.
type DecisionType string

const (
	DecisionAuto          DecisionType = "AUTO"
	DecisionClarification DecisionType = "CLARIFICATION"
	DecisionAgent         DecisionType = "AGENT"
	DecisionEndCall       DecisionType = "END_CALL"
)

// Reason codes owned by the orchestrator itself; policy reasons pass
// through unchanged.
const (
	ReasonNoInput     = "NO_INPUT"
	ReasonUserGoodbye = "USER_GOODBYE"
)

// TurnResult is what one orchestration step hands back to the
// connection layer. Every field is populated at construction; Agent and
// Confidence are nil only where the decision has no use for them.
type TurnResult struct {
	Decision           DecisionType   `json:"decision"`
	Reason             string         `json:"reason"`
	Message            string         `json:"message,omitempty"`
	Agent              *session.Agent `json:"agent,omitempty"`
	Confidence         *float64       `json:"confidence,omitempty"`
	ClarificationCount int            `json:"clarification_count"`
	CallID             string         `json:"call_id"`
}
