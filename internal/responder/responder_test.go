package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("component", "test")
}

func TestGenerateUsesContextAndIntent(t *testing.T) {
	var gotSystem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotSystem = req.Messages[0].Content
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Bien sûr, je peux vous aider."}}]}`))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "key", "model", 2*time.Second, newTestLog())
	out, err := g.Generate(context.Background(), "j'ai une question", []string{"Bonjour", "bonjour"}, "INQUIRY")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "Bien sûr, je peux vous aider." {
		t.Fatalf("unexpected reply %q", out)
	}
	if !strings.Contains(gotSystem, "Contexte récent") || !strings.Contains(gotSystem, intentGuidelines["INQUIRY"]) {
		t.Fatalf("system prompt missing context or guideline: %q", gotSystem)
	}
}

func TestGenerateEmptyReplyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "key", "model", 2*time.Second, newTestLog())
	if _, err := g.Generate(context.Background(), "question", nil, "INQUIRY"); err == nil {
		t.Fatalf("expected error on empty reply")
	}
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "key", "model", 20*time.Millisecond, newTestLog())
	if _, err := g.Generate(context.Background(), "question", nil, "INQUIRY"); err == nil {
		t.Fatalf("expected timeout error")
	}
}
