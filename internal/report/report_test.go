package report

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"voicebot/agent/internal/session"
)

func TestFromSessionEscalated(t *testing.T) {
	s := session.New("c1")
	s.AddMessage("bonjour")
	s.AddMessage("je veux parler à un agent")
	s.RecordConfidence(0.8, time.Now())
	s.RecordConfidence(0.6, time.Now())
	s.Escalate("A1", "USER_REQUEST_AGENT")

	r := FromSession(s)
	if r.Status != "ESCALATED" || r.FinalDecision != "AGENT" {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.AverageConfidence != 0.7 {
		t.Fatalf("expected average 0.7, got %v", r.AverageConfidence)
	}
	if !strings.Contains(r.Summary, "transféré à un agent humain") {
		t.Fatalf("summary missing escalation line: %q", r.Summary)
	}
	if !strings.Contains(r.Summary, "Nombre de messages: 2") {
		t.Fatalf("summary missing message count: %q", r.Summary)
	}
}

func TestRepositorySaveAndGet(t *testing.T) {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	repo, err := NewRepository(filepath.Join(t.TempDir(), "reports.db"), l.WithField("component", "report"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	s := session.New("c2")
	s.AddMessage("au revoir")
	s.RecordConfidence(0.9, time.Now())
	s.End("END_CALL")
	rep := FromSession(s)

	ctx := context.Background()
	if err := repo.Save(ctx, rep); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Upsert must not fail on a second write.
	if err := repo.Save(ctx, rep); err != nil {
		t.Fatalf("save twice: %v", err)
	}

	got, err := repo.Get(ctx, "c2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CallID != "c2" || got.FinalDecision != "END_CALL" || got.AverageConfidence != 0.9 {
		t.Fatalf("unexpected stored report %+v", got)
	}
}
