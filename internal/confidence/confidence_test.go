package confidence

import (
	"testing"

	"github.com/sirupsen/logrus"

	"voicebot/agent/internal/session"
)

func testManager() *Manager {
	log := logrus.New()
	return New(0.4, 0.6, 0.15, log.WithField("component", "confidence"))
}

func TestGlobalWeighted(t *testing.T) {
	m := testManager()
	if got := m.Global(0.9, 0.8, false); got != 0.84 {
		t.Fatalf("expected 0.84, got %v", got)
	}
	if got := m.Global(0.9, 0.8, true); got != 0.69 {
		t.Fatalf("expected 0.69 with ambiguity penalty, got %v", got)
	}
}

func TestGlobalClamped(t *testing.T) {
	m := testManager()
	if got := m.Global(0, 0, true); got != 0 {
		t.Fatalf("expected clamp at 0, got %v", got)
	}
	if got := m.Global(1, 1, false); got != 1 {
		t.Fatalf("expected clamp at 1, got %v", got)
	}
}

func TestGlobalMonotonic(t *testing.T) {
	m := testManager()
	prev := -1.0
	for i := 0; i <= 10; i++ {
		v := m.Global(float64(i)/10, 0.5, false)
		if v < prev {
			t.Fatalf("score decreased in asr: %v after %v", v, prev)
		}
		prev = v
	}
	prev = -1.0
	for i := 0; i <= 10; i++ {
		v := m.Global(0.5, float64(i)/10, false)
		if v < prev {
			t.Fatalf("score decreased in nlu: %v after %v", v, prev)
		}
		prev = v
	}
}

func TestRecordAppendsTimeline(t *testing.T) {
	m := testManager()
	s := session.New("c1")
	score := m.Record(s, 0.9, 0.8, false)
	if score != 0.84 {
		t.Fatalf("expected 0.84, got %v", score)
	}
	if len(s.Timeline) != 1 || s.Timeline[0].Score != 0.84 {
		t.Fatalf("timeline not appended: %v", s.Timeline)
	}
	if s.GlobalConfidence != 0.84 {
		t.Fatalf("global confidence not stored: %v", s.GlobalConfidence)
	}
}

func TestRecordNeverFailsTurn(t *testing.T) {
	m := testManager()
	// nil session: score still computed
	if got := m.Record(nil, 0.5, 0.5, false); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	// terminal session: logged, not fatal
	s := session.New("c2")
	s.End("AUTO")
	if got := m.Record(s, 0.5, 0.5, false); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if len(s.Timeline) != 0 {
		t.Fatalf("terminal session timeline mutated")
	}
}
