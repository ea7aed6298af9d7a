// Package policy decides, per user turn, whether the call stays
// automated, needs a clarification, or goes to a human. Tiers are
// evaluated in order and the first match wins. The policy is
// conservative by construction: only an explicit agent request or a
// model-validated emergency escalates; every ambiguous signal degrades
// to clarification or automated handling instead.
package policy

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"voicebot/agent/internal/classifier"
)

// Action is the ternary outcome of one policy evaluation.
type Action string

const (
	ActionEscalate    Action = "ESCALATE"
	ActionClarify     Action = "ASK_CLARIFICATION"
	ActionAutoHandled Action = "AUTO_HANDLED"
)

// Reason codes for the escalation/clarification branches.
const (
	ReasonUserRequestAgent  = "USER_REQUEST_AGENT"
	ReasonRepeatedAmbiguity = "REPEATED_AMBIGUITY"
	ReasonLowConfidence     = "LOW_CONFIDENCE"
	ReasonAutoHandled       = "AUTO_HANDLED"

	reasonCriticalPrefix  = "CRITICAL_SITUATION:"
	reasonSensitivePrefix = "SENSITIVE_CONTENT:"
	reasonIntentPrefix    = "SENSITIVE_INTENT:"
)

// Validation bars per tier. The broad lexicon needs a stronger verdict
// than the critical one, and co-occurring sensitive intents the
// weakest.
const (
	criticalBar = 0.7
	contextBar  = 0.75
	intentBar   = 0.6
)

// Decision is the policy outcome for one turn.
type Decision struct {
	Action Action
	Reason string
}

func escalate(reason string) Decision { return Decision{Action: ActionEscalate, Reason: reason} }

func clarify(reason string) Decision { return Decision{Action: ActionClarify, Reason: reason} }

func auto() Decision { return Decision{Action: ActionAutoHandled, Reason: ReasonAutoHandled} }

var sensitiveIntents = map[string]struct{}{
	"CLAIM":                 {},
	"LEGAL_ISSUE":           {},
	"CONTRACT_CANCELLATION": {},
}

// Policy is the tiered rule engine. One instance per process, injected
// into the orchestrator; safe for sequential per-session use.
type Policy struct {
	confidenceLimit float64
	maxAmbiguity    int
	severity        classifier.SeverityClassifier
	cache           *verdictCache
	timeout         time.Duration
	log             *logrus.Entry
}

func New(confidenceLimit float64, maxAmbiguity, cacheSize int, sev classifier.SeverityClassifier, timeout time.Duration, log *logrus.Entry) *Policy {
	if maxAmbiguity <= 0 {
		maxAmbiguity = 3
	}
	return &Policy{
		confidenceLimit: confidenceLimit,
		maxAmbiguity:    maxAmbiguity,
		severity:        sev,
		cache:           newVerdictCache(cacheSize),
		timeout:         timeout,
		log:             log,
	}
}

// Decide evaluates the tiers against one user turn. Short-circuit: the
// first matching tier wins.
func (p *Policy) Decide(ctx context.Context, globalConfidence float64, intentName string, ambiguityCount int, userText string) Decision {
	lower := strings.ToLower(userText)
	question := isQuestion(lower)
	critical := containsAny(lower, criticalKeywords)
	contextual := containsAny(lower, contextKeywords)

	// Tier 1: explicit request for a human beats everything.
	if IsAgentRequest(userText) {
		return escalate(ReasonUserRequestAgent)
	}

	// Tier 2: critical keyword. Questions about critical topics are
	// inquiries and fall through.
	if critical && !question {
		if verdict, ok := p.validate(ctx, userText, criticalBar); ok {
			return escalate(reasonCriticalPrefix + verdict.Reason)
		}
	}

	// Tier 3: broader lexicon, higher validation bar.
	if contextual && !question {
		if verdict, ok := p.validate(ctx, userText, contextBar); ok {
			return escalate(reasonSensitivePrefix + verdict.Reason)
		}
	}

	// Tier 4: confidence floor.
	if globalConfidence < p.confidenceLimit {
		if ambiguityCount >= p.maxAmbiguity {
			return escalate(ReasonRepeatedAmbiguity)
		}
		return clarify(ReasonLowConfidence)
	}

	// Tier 5: sensitive intent with a co-occurring keyword.
	if _, sensitive := sensitiveIntents[strings.ToUpper(intentName)]; sensitive && (critical || contextual) && !question {
		if _, ok := p.validate(ctx, userText, intentBar); ok {
			return escalate(reasonIntentPrefix + strings.ToUpper(intentName))
		}
	}

	return auto()
}

// validate asks the severity model whether the utterance is a real
// emergency, memoized per exact text. Fail-safe: any classifier error
// reads as "no escalation". Only successful verdicts enter the cache.
func (p *Policy) validate(ctx context.Context, text string, bar float64) (classifier.Severity, bool) {
	key := cacheKey(text)
	verdict, cached := p.cache.get(key)
	if !cached {
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		var err error
		verdict, err = p.severity.Analyze(cctx, text)
		if err != nil {
			p.log.WithError(err).Warn("severity classifier unavailable, not escalating")
			return classifier.Severity{}, false
		}
		p.cache.add(key, verdict)
	}
	return verdict, verdict.RequiresEscalation && verdict.Confidence > bar
}
