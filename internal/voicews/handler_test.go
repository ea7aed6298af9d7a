package voicews

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	ws "nhooyr.io/websocket"

	"voicebot/agent/internal/classifier"
	"voicebot/agent/internal/config"
	"voicebot/agent/internal/confidence"
	"voicebot/agent/internal/orchestrator"
	"voicebot/agent/internal/policy"
	"voicebot/agent/internal/session"
)

type stubSeverity struct{}

func (stubSeverity) Analyze(ctx context.Context, text string) (classifier.Severity, error) {
	return classifier.Severity{}, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, userText string, contextMsgs []string, intent string) (string, error) {
	return "Bien sûr.", nil
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	log := l.WithField("component", "test")

	var cfg config.Config
	cfg.Call.Greeting = "Bonjour !"
	cfg.Call.Clarification = "Pourriez-vous préciser ?"
	cfg.Call.Apology = "Désolé."
	cfg.Call.Goodbye = "Au revoir !"

	cm := confidence.New(0.4, 0.6, 0.15, log)
	p := policy.New(0.3, 3, 16, stubSeverity{}, time.Second, log)
	eng := orchestrator.New(cm, p, stubGenerator{}, session.NewAgentPool(nil), orchestrator.Prompts{
		Clarification: cfg.Call.Clarification,
		Apology:       cfg.Call.Apology,
		Goodbye:       cfg.Call.Goodbye,
	}, 5, time.Second, log)

	reg := session.NewRegistry()
	srv := NewServer(cfg, reg, eng, classifier.NewLexicalIntent(), nil, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/voice", srv.HandleVoiceWS)
	return httptest.NewServer(mux), reg
}

func readEvent(t *testing.T, ctx context.Context, c *ws.Conn) OutboundEvent {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev OutboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestUnknownCallIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/voice?call_id=nope")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGreetingThenGoodbyeTurn(t *testing.T) {
	srv, reg := newTestServer(t)
	defer srv.Close()

	sess := reg.Create()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := ws.Dial(ctx, "ws"+srv.URL[4:]+"/ws/voice?call_id="+sess.ID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "test done")

	// System speaks first.
	ev := readEvent(t, ctx, c)
	if ev.Type != "greeting" || ev.Message != "Bonjour !" {
		t.Fatalf("expected greeting first, got %+v", ev)
	}

	frame, _ := json.Marshal(InboundTurn{Type: "user_turn", Text: "au revoir et merci", ASRConfidence: 0.9})
	if err := c.Write(ctx, ws.MessageText, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev = readEvent(t, ctx, c)
	if ev.Type != "turn_result" || ev.Result == nil {
		t.Fatalf("expected turn result, got %+v", ev)
	}
	if ev.Result.Decision != orchestrator.DecisionEndCall {
		t.Fatalf("expected END_CALL, got %+v", ev.Result)
	}

	// Terminal transition destroys the registry entry.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := reg.Get(sess.ID); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session still registered after terminal turn")
}

func TestSecondConnectionRejected(t *testing.T) {
	srv, reg := newTestServer(t)
	defer srv.Close()

	sess := reg.Create()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := ws.Dial(ctx, "ws"+srv.URL[4:]+"/ws/voice?call_id="+sess.ID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "test done")

	readEvent(t, ctx, c) // greeting: the first connection holds the call

	resp, err := http.Get(srv.URL + "/ws/voice?call_id=" + sess.ID)
	if err != nil {
		t.Fatalf("second dial: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a second connection, got %d", resp.StatusCode)
	}

	// The first connection keeps working.
	frame, _ := json.Marshal(InboundTurn{Type: "user_turn", Text: "au revoir et merci", ASRConfidence: 0.9})
	if err := c.Write(ctx, ws.MessageText, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, ctx, c)
	if ev.Result == nil || ev.Result.Decision != orchestrator.DecisionEndCall {
		t.Fatalf("expected END_CALL on the owning connection, got %+v", ev)
	}
}

func TestAutoTurnKeepsCallOpen(t *testing.T) {
	srv, reg := newTestServer(t)
	defer srv.Close()

	sess := reg.Create()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := ws.Dial(ctx, "ws"+srv.URL[4:]+"/ws/voice?call_id="+sess.ID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "test done")

	readEvent(t, ctx, c) // greeting

	frame, _ := json.Marshal(InboundTurn{Type: "user_turn", Text: "quels sont vos horaires ?", ASRConfidence: 0.9})
	if err := c.Write(ctx, ws.MessageText, frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := readEvent(t, ctx, c)
	if ev.Result == nil || ev.Result.Decision != orchestrator.DecisionAuto {
		t.Fatalf("expected AUTO, got %+v", ev)
	}
	if ev.Result.Message != "Bien sûr." {
		t.Fatalf("unexpected reply %q", ev.Result.Message)
	}
	if _, err := reg.Get(sess.ID); err != nil {
		t.Fatalf("session should stay registered: %v", err)
	}
}
