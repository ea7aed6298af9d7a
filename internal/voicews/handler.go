// Package voicews runs the streaming turn loop of one call: greeting
// first, then user turns in, turn results out, with the floor
// controller deciding who may transmit.
package voicews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	ws "nhooyr.io/websocket"

	"voicebot/agent/internal/auth"
	"voicebot/agent/internal/classifier"
	"voicebot/agent/internal/config"
	"voicebot/agent/internal/floor"
	"voicebot/agent/internal/orchestrator"
	"voicebot/agent/internal/report"
	"voicebot/agent/internal/session"
)

// InboundTurn is one client frame: the transcribed user utterance with
// its upstream ASR confidence.
type InboundTurn struct {
	Type          string  `json:"type"`
	Text          string  `json:"text"`
	ASRConfidence float64 `json:"asr_confidence"`
	Ambiguous     bool    `json:"ambiguous,omitempty"`
}

// OutboundEvent is one server frame.
type OutboundEvent struct {
	Type    string                   `json:"type"`
	Message string                   `json:"message,omitempty"`
	Result  *orchestrator.TurnResult `json:"result,omitempty"`
}

type Server struct {
	cfg      config.Config
	registry *session.Registry
	engine   *orchestrator.Engine
	intents  classifier.IntentClassifier
	reports  *report.Repository
	log      *logrus.Entry
}

func NewServer(cfg config.Config, reg *session.Registry, eng *orchestrator.Engine, intents classifier.IntentClassifier, reports *report.Repository, log *logrus.Entry) *Server {
	return &Server{cfg: cfg, registry: reg, engine: eng, intents: intents, reports: reports, log: log}
}

// HandleVoiceWS owns one call connection for its lifetime. The session
// is only ever written from this handler's goroutine: the registry
// claim rejects a second connection to the same call.
func (s *Server) HandleVoiceWS(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	if callID == "" {
		http.Error(w, "missing call_id", http.StatusBadRequest)
		return
	}
	sess, err := s.registry.Attach(callID)
	if err != nil {
		if errors.Is(err, session.ErrAttached) {
			http.Error(w, "call already attached", http.StatusConflict)
			return
		}
		http.Error(w, "unknown call", http.StatusNotFound)
		return
	}
	if sess.Terminal() {
		s.registry.Detach(callID)
		http.Error(w, "call already closed", http.StatusConflict)
		return
	}
	if !s.authorize(r, callID) {
		s.registry.Detach(callID)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		s.registry.Detach(callID)
		s.log.WithError(err).Warn("ws accept failed")
		return
	}
	log := s.log.WithField("call_id", callID)

	ctx := r.Context()
	fl := floor.New()

	// System speaks first: the greeting goes out before any input is
	// admitted.
	sess.AddMessage(s.cfg.Call.Greeting)
	if err := s.send(ctx, c, OutboundEvent{Type: "greeting", Message: s.cfg.Call.Greeting}); err != nil {
		s.teardown(c, sess, log, "greeting send failed")
		return
	}
	fl.FinishSpeaking()

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			s.teardown(c, sess, log, "client disconnected")
			return
		}

		var in InboundTurn
		if err := json.Unmarshal(data, &in); err != nil {
			log.WithError(err).Warn("invalid frame dropped")
			continue
		}
		if in.Type != "user_turn" {
			continue
		}
		// Known-drop: frames arriving while the system holds the
		// floor are discarded, not buffered.
		if !fl.Admit() {
			log.WithField("dropped", fl.Dropped()).Debug("frame dropped while speaking")
			continue
		}

		// Floor is taken before generation starts and released only
		// after the result frame is fully written.
		fl.BeginSpeaking()
		done := s.processTurn(ctx, c, sess, in, log)
		fl.FinishSpeaking()

		if done {
			s.finishCall(c, sess, log)
			return
		}
	}
}

// processTurn runs one orchestration step and transmits the result.
// Returns true when the call reached a terminal decision.
func (s *Server) processTurn(ctx context.Context, c *ws.Conn, sess *session.CallSession, in InboundTurn, log *logrus.Entry) bool {
	text := strings.TrimSpace(in.Text)
	if err := sess.AddMessage(text); err != nil {
		s.send(ctx, c, OutboundEvent{Type: "error", Message: "call already closed"})
		return true
	}

	intent, err := s.intents.Detect(ctx, text)
	if err != nil {
		log.WithError(err).Warn("intent detection failed")
		intent = classifier.Intent{Name: "UNKNOWN", Confidence: 0}
	}

	res, err := s.engine.ProcessTurn(ctx, sess, intent, in.ASRConfidence, intent.Confidence, in.Ambiguous)
	if err != nil {
		log.WithError(err).Warn("turn rejected")
		s.send(ctx, c, OutboundEvent{Type: "error", Message: "call already closed"})
		return true
	}

	if err := s.send(ctx, c, OutboundEvent{Type: "turn_result", Result: &res}); err != nil {
		log.WithError(err).Warn("result send failed")
		return true
	}
	return res.Decision == orchestrator.DecisionAgent || res.Decision == orchestrator.DecisionEndCall
}

func (s *Server) authorize(r *http.Request, callID string) bool {
	if s.cfg.WS.TokenSecret == "" {
		// Auth disabled in local runs.
		return true
	}
	token := ""
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		token = strings.TrimPrefix(authz, "Bearer ")
	} else {
		// Browser websocket clients cannot set headers.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return false
	}
	_, err := auth.ValidateCallToken(s.cfg.WS.TokenSecret, token, callID, time.Now(), s.cfg.WS.TokenSkewSecs)
	return err == nil
}

func (s *Server) send(ctx context.Context, c *ws.Conn, ev OutboundEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.Write(wctx, ws.MessageText, b)
}

// finishCall persists the terminal session and drops it from the
// registry. Persistence is fire-and-forget.
func (s *Server) finishCall(c *ws.Conn, sess *session.CallSession, log *logrus.Entry) {
	if s.reports != nil && sess.Terminal() {
		s.reports.SaveAsync(report.FromSession(sess))
	}
	s.registry.Remove(sess.ID)
	c.Close(ws.StatusNormalClosure, "call finished")
	log.WithField("status", sess.Status).Info("call finished")
}

// teardown handles disconnects: the session is destroyed with the
// connection, and a session that already went terminal still gets its
// report.
func (s *Server) teardown(c *ws.Conn, sess *session.CallSession, log *logrus.Entry, why string) {
	if s.reports != nil && sess.Terminal() {
		s.reports.SaveAsync(report.FromSession(sess))
	}
	s.registry.Remove(sess.ID)
	c.Close(ws.StatusNormalClosure, "done")
	log.Info(why)
}
