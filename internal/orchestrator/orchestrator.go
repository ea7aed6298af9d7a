// Package orchestrator composes confidence scoring, escalation policy
// and session mutation into the single per-turn decision of the call.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"voicebot/agent/internal/classifier"
	"voicebot/agent/internal/confidence"
	"voicebot/agent/internal/policy"
	"voicebot/agent/internal/responder"
	"voicebot/agent/internal/session"
)

// Prompts are the fixed surface strings the engine speaks on its own
// behalf.
type Prompts struct {
	Clarification string
	Apology       string
	Goodbye       string
}

// Engine is the turn-decision engine. It is not re-entrant on the same
// session; the connection task serializes calls per call ID.
type Engine struct {
	confidence   *confidence.Manager
	policy       *policy.Policy
	generator    responder.Generator
	agents       *session.AgentPool
	prompts      Prompts
	contextTurns int
	genTimeout   time.Duration
	log          *logrus.Entry
}

func New(cm *confidence.Manager, p *policy.Policy, gen responder.Generator, agents *session.AgentPool, prompts Prompts, contextTurns int, genTimeout time.Duration, log *logrus.Entry) *Engine {
	if contextTurns <= 0 {
		contextTurns = 5
	}
	return &Engine{
		confidence:   cm,
		policy:       p,
		generator:    gen,
		agents:       agents,
		prompts:      prompts,
		contextTurns: contextTurns,
		genTimeout:   genTimeout,
		log:          log,
	}
}

// ProcessTurn runs one decision step. The caller appends the user
// utterance to the session before invoking it. Exactly one terminal
// branch executes; the only error surfaced is a turn against an already
// terminal session.
func (e *Engine) ProcessTurn(ctx context.Context, s *session.CallSession, intent classifier.Intent, asrConf, nluConf float64, ambiguous bool) (TurnResult, error) {
	started := time.Now()
	defer func() { metricTurnLatency.Observe(float64(time.Since(started).Milliseconds())) }()

	if s.Terminal() {
		return TurnResult{}, fmt.Errorf("process turn on %s session: %w", s.Status, session.ErrClosed)
	}
	metricTurns.Inc()

	userText := s.LastMessage()
	if userText == "" {
		// Nothing to decide on yet; ask for input without touching
		// the clarification counter.
		s.AddMessage(e.prompts.Clarification)
		return e.finish(TurnResult{
			Decision:           DecisionClarification,
			Reason:             ReasonNoInput,
			Message:            e.prompts.Clarification,
			ClarificationCount: s.ClarificationCount,
			CallID:             s.ID,
		}), nil
	}

	// Fast path: an unambiguous demand for a human skips the scoring
	// work entirely.
	if policy.IsAgentRequest(userText) {
		return e.escalate(s, policy.ReasonUserRequestAgent, nil), nil
	}

	score := e.confidence.Record(s, asrConf, nluConf, ambiguous)

	intentName := intent.Name
	if intentName == "" {
		intentName = "UNKNOWN"
	}
	s.SetIntent(intentName)

	e.log.WithFields(logrus.Fields{
		"call_id":    s.ID,
		"intent":     intentName,
		"confidence": score,
	}).Debug("turn scored")

	if intentName == "GOODBYE" {
		// Closing message goes in before the terminal transition seals
		// the transcript.
		s.AddMessage(e.prompts.Goodbye)
		s.End(string(DecisionEndCall))
		metricDecisions.WithLabelValues(string(DecisionEndCall)).Inc()
		return TurnResult{
			Decision:           DecisionEndCall,
			Reason:             ReasonUserGoodbye,
			Message:            e.prompts.Goodbye,
			Confidence:         &score,
			ClarificationCount: s.ClarificationCount,
			CallID:             s.ID,
		}, nil
	}

	// The current low-confidence turn counts toward the ambiguity
	// budget: with a budget of 3, the third unclear turn goes to an
	// agent instead of a third clarification.
	d := e.policy.Decide(ctx, score, intentName, s.ClarificationCount+1, userText)

	switch d.Action {
	case policy.ActionEscalate:
		return e.escalate(s, d.Reason, &score), nil

	case policy.ActionClarify:
		s.RecordClarification()
		s.AddMessage(e.prompts.Clarification)
		return e.finish(TurnResult{
			Decision:           DecisionClarification,
			Reason:             d.Reason,
			Message:            e.prompts.Clarification,
			Confidence:         &score,
			ClarificationCount: s.ClarificationCount,
			CallID:             s.ID,
		}), nil

	default:
		reply := e.generate(ctx, s, userText, intentName)
		s.AddMessage(reply)
		return e.finish(TurnResult{
			Decision:           DecisionAuto,
			Reason:             d.Reason,
			Message:            reply,
			Confidence:         &score,
			ClarificationCount: s.ClarificationCount,
			CallID:             s.ID,
		}), nil
	}
}

// escalate runs the shared AGENT branch: terminal transition, agent
// assignment and the closing notice.
func (e *Engine) escalate(s *session.CallSession, reason string, score *float64) TurnResult {
	agent := e.agents.Assign(s.ID)
	s.AddMessage(fmt.Sprintf("Appel transféré à l'agent %s (%s).", agent.Name, agent.Department))
	s.Escalate(agent.ID, reason)

	metricDecisions.WithLabelValues(string(DecisionAgent)).Inc()
	metricEscalations.WithLabelValues(reasonClass(reason)).Inc()
	e.log.WithFields(logrus.Fields{
		"call_id": s.ID,
		"reason":  reason,
		"agent":   agent.ID,
	}).Info("call escalated")

	return TurnResult{
		Decision:           DecisionAgent,
		Reason:             reason,
		Message:            fmt.Sprintf("Vous allez être mis en relation avec %s.", agent.Name),
		Agent:              &agent,
		Confidence:         score,
		ClarificationCount: s.ClarificationCount,
		CallID:             s.ID,
	}
}

// generate asks the response generator for the automated reply with the
// recent conversation window. Failures never leave this method: the
// apology string stands in and the turn completes.
func (e *Engine) generate(ctx context.Context, s *session.CallSession, userText, intentName string) string {
	window := s.RecentMessages(e.contextTurns)
	gctx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	reply, err := e.generator.Generate(gctx, userText, window, intentName)
	if err != nil {
		metricGenerationFallbacks.Inc()
		e.log.WithField("call_id", s.ID).WithError(err).Warn("generation failed, using apology fallback")
		return e.prompts.Apology
	}
	return reply
}

func (e *Engine) finish(r TurnResult) TurnResult {
	metricDecisions.WithLabelValues(string(r.Decision)).Inc()
	return r
}
