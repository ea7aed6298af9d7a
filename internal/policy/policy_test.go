package policy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"voicebot/agent/internal/classifier"
)

type stubSeverity struct {
	verdict classifier.Severity
	err     error
	calls   int
}

func (s *stubSeverity) Analyze(ctx context.Context, text string) (classifier.Severity, error) {
	s.calls++
	if s.err != nil {
		return classifier.Severity{}, s.err
	}
	return s.verdict, nil
}

func newPolicy(sev classifier.SeverityClassifier) *Policy {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return New(0.3, 3, 16, sev, time.Second, l.WithField("component", "policy"))
}

func TestExplicitAgentRequestAlwaysEscalates(t *testing.T) {
	p := newPolicy(&stubSeverity{})
	d := p.Decide(context.Background(), 0.95, "GREETING", 0, "je veux parler à un agent")
	if d.Action != ActionEscalate || d.Reason != ReasonUserRequestAgent {
		t.Fatalf("expected USER_REQUEST_AGENT escalation, got %+v", d)
	}
}

func TestCriticalKeywordValidatedEscalates(t *testing.T) {
	sev := &stubSeverity{verdict: classifier.Severity{RequiresEscalation: true, Reason: "danger vital", Confidence: 0.9}}
	p := newPolicy(sev)
	d := p.Decide(context.Background(), 0.8, "PROBLEM", 0, "il y a eu une explosion chez moi")
	if d.Action != ActionEscalate || d.Reason != "CRITICAL_SITUATION:danger vital" {
		t.Fatalf("expected critical escalation, got %+v", d)
	}
}

func TestCriticalKeywordBelowBarDoesNotEscalate(t *testing.T) {
	sev := &stubSeverity{verdict: classifier.Severity{RequiresEscalation: true, Reason: "x", Confidence: 0.5}}
	p := newPolicy(sev)
	d := p.Decide(context.Background(), 0.8, "PROBLEM", 0, "il y a eu une explosion chez moi")
	if d.Action != ActionAutoHandled {
		t.Fatalf("expected auto handling below confidence bar, got %+v", d)
	}
}

func TestCriticalQuestionIsInquiry(t *testing.T) {
	sev := &stubSeverity{verdict: classifier.Severity{RequiresEscalation: true, Reason: "x", Confidence: 0.99}}
	p := newPolicy(sev)
	d := p.Decide(context.Background(), 0.8, "INQUIRY", 0, "comment déclarer une explosion de chaudière ?")
	if d.Action != ActionAutoHandled {
		t.Fatalf("question should fall through, got %+v", d)
	}
	if sev.calls != 0 {
		t.Fatalf("classifier should not be consulted for questions, got %d calls", sev.calls)
	}
}

func TestClassifierFailureNeverEscalates(t *testing.T) {
	sev := &stubSeverity{err: errors.New("timeout")}
	p := newPolicy(sev)
	d := p.Decide(context.Background(), 0.8, "PROBLEM", 0, "il y a une arme dans la maison")
	if d.Action != ActionAutoHandled {
		t.Fatalf("classifier failure must fail safe, got %+v", d)
	}
}

func TestContextKeywordUsesHigherBar(t *testing.T) {
	sev := &stubSeverity{verdict: classifier.Severity{RequiresEscalation: true, Reason: "agression", Confidence: 0.72}}
	p := newPolicy(sev)
	// 0.72 clears the critical bar but not the context bar.
	d := p.Decide(context.Background(), 0.8, "PROBLEM", 0, "j'ai subi une agression hier")
	if d.Action != ActionAutoHandled {
		t.Fatalf("expected auto below context bar, got %+v", d)
	}
	sev.verdict.Confidence = 0.8
	p = newPolicy(sev)
	d = p.Decide(context.Background(), 0.8, "PROBLEM", 0, "j'ai subi une agression hier")
	if d.Action != ActionEscalate || !strings.HasPrefix(d.Reason, "SENSITIVE_CONTENT:") {
		t.Fatalf("expected sensitive content escalation, got %+v", d)
	}
}

func TestConfidenceFloorClarifiesThenEscalates(t *testing.T) {
	p := newPolicy(&stubSeverity{})
	d := p.Decide(context.Background(), 0.2, "UNKNOWN", 0, "mmh hmm")
	if d.Action != ActionClarify || d.Reason != ReasonLowConfidence {
		t.Fatalf("expected clarification, got %+v", d)
	}
	d = p.Decide(context.Background(), 0.2, "UNKNOWN", 3, "mmh hmm")
	if d.Action != ActionEscalate || d.Reason != ReasonRepeatedAmbiguity {
		t.Fatalf("expected REPEATED_AMBIGUITY, got %+v", d)
	}
}

func TestSensitiveIntentWithKeywordEscalates(t *testing.T) {
	sev := &stubSeverity{verdict: classifier.Severity{RequiresEscalation: true, Reason: "litige", Confidence: 0.65}}
	p := newPolicy(sev)
	// 0.65 is below both lexicon bars but above the intent bar.
	d := p.Decide(context.Background(), 0.8, "LEGAL_ISSUE", 0, "mon avocat va s'en occuper")
	if d.Action != ActionEscalate || d.Reason != "SENSITIVE_INTENT:LEGAL_ISSUE" {
		t.Fatalf("expected sensitive intent escalation, got %+v", d)
	}
}

func TestPlainTurnIsAutoHandled(t *testing.T) {
	sev := &stubSeverity{}
	p := newPolicy(sev)
	d := p.Decide(context.Background(), 0.9, "INQUIRY", 0, "quels sont vos horaires d'ouverture ?")
	if d.Action != ActionAutoHandled || d.Reason != ReasonAutoHandled {
		t.Fatalf("expected auto handling, got %+v", d)
	}
	if sev.calls != 0 {
		t.Fatalf("no classifier call expected, got %d", sev.calls)
	}
}

func TestVerdictMemoizedPerExactText(t *testing.T) {
	sev := &stubSeverity{verdict: classifier.Severity{RequiresEscalation: true, Reason: "danger", Confidence: 0.9}}
	p := newPolicy(sev)
	for i := 0; i < 3; i++ {
		p.Decide(context.Background(), 0.8, "PROBLEM", 0, "il y a eu une explosion")
	}
	if sev.calls != 1 {
		t.Fatalf("expected 1 classifier call for repeated text, got %d", sev.calls)
	}
}

func TestClassifierErrorNotCached(t *testing.T) {
	sev := &stubSeverity{err: errors.New("down")}
	p := newPolicy(sev)
	p.Decide(context.Background(), 0.8, "PROBLEM", 0, "il y a eu une explosion")
	sev.err = nil
	sev.verdict = classifier.Severity{RequiresEscalation: true, Reason: "danger", Confidence: 0.9}
	d := p.Decide(context.Background(), 0.8, "PROBLEM", 0, "il y a eu une explosion")
	if d.Action != ActionEscalate {
		t.Fatalf("expected escalation once classifier recovered, got %+v", d)
	}
	if sev.calls != 2 {
		t.Fatalf("expected error to stay uncached, got %d calls", sev.calls)
	}
}

func TestCacheEviction(t *testing.T) {
	c := newVerdictCache(2)
	c.add(cacheKey("a"), classifier.Severity{Reason: "a"})
	c.add(cacheKey("b"), classifier.Severity{Reason: "b"})
	c.add(cacheKey("c"), classifier.Severity{Reason: "c"})
	if c.len() != 2 {
		t.Fatalf("expected capacity 2, got %d", c.len())
	}
	if _, ok := c.get(cacheKey("a")); ok {
		t.Fatalf("oldest entry should be evicted")
	}
	if _, ok := c.get(cacheKey("c")); !ok {
		t.Fatalf("newest entry missing")
	}
}

func TestIsQuestion(t *testing.T) {
	if !isQuestion("comment ça marche ?") {
		t.Fatalf("expected question")
	}
	if isQuestion("il y a une urgence") {
		t.Fatalf("statement misread as question")
	}
	// A bare question mark without an interrogative marker stays a statement.
	if isQuestion("une explosion ?!") {
		t.Fatalf("marker required alongside question mark")
	}
}
