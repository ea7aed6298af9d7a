// Package classifier holds the upstream AI collaborators of the
// turn-decision engine: intent detection and severity analysis. Both
// are consumed through small interfaces so the orchestrator and policy
// never depend on a concrete provider.
package classifier

import "context"

// Intent is the classified meaning of one utterance.
type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Severity is the verdict of the external severity model on a
// potentially critical utterance.
type Severity struct {
	RequiresEscalation bool    `json:"requires_escalation"`
	Reason             string  `json:"reason"`
	Confidence         float64 `json:"confidence"`
}

// IntentClassifier maps an utterance to an intent.
type IntentClassifier interface {
	Detect(ctx context.Context, text string) (Intent, error)
}

// SeverityClassifier validates whether an utterance describes a real
// emergency. Implementations must be idempotent for identical input and
// must fail closed: any error means "no escalation" for the caller.
type SeverityClassifier interface {
	Analyze(ctx context.Context, text string) (Severity, error)
}
