package confidence

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"voicebot/agent/internal/session"
)

// Manager folds the upstream ASR and NLU confidences into one global
// score. Pure arithmetic, no I/O.
type Manager struct {
	asrWeight        float64
	nluWeight        float64
	ambiguityPenalty float64
	log              *logrus.Entry
}

func New(asrWeight, nluWeight, ambiguityPenalty float64, log *logrus.Entry) *Manager {
	return &Manager{
		asrWeight:        asrWeight,
		nluWeight:        nluWeight,
		ambiguityPenalty: ambiguityPenalty,
		log:              log,
	}
}

// Global computes the weighted score, applies the ambiguity penalty,
// clamps to [0,1] and rounds to 2 decimals.
func (m *Manager) Global(asr, nlu float64, ambiguous bool) float64 {
	score := asr*m.asrWeight + nlu*m.nluWeight
	if ambiguous {
		score -= m.ambiguityPenalty
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return math.Round(score*100) / 100
}

// Record computes the global score and appends it to the session
// timeline. Timeline bookkeeping never fails the turn: a terminal or
// missing session is logged and the score still returned.
func (m *Manager) Record(s *session.CallSession, asr, nlu float64, ambiguous bool) float64 {
	score := m.Global(asr, nlu, ambiguous)
	if s == nil {
		m.log.Warn("confidence recorded without session handle")
		return score
	}
	if err := s.RecordConfidence(score, time.Now().UTC()); err != nil {
		m.log.WithField("call_id", s.ID).WithError(err).Warn("confidence timeline append skipped")
	}
	return score
}
