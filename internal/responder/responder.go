// Package responder generates the automated reply for turns the policy
// leaves to the bot. One bounded attempt per turn; the orchestrator
// substitutes a fixed apology when generation fails.
package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Generator produces the assistant reply for one user turn given the
// recent conversation window.
type Generator interface {
	Generate(ctx context.Context, userText string, contextMsgs []string, intent string) (string, error)
}

// Per-intent steering for the reply model, kept from the production
// prompt set.
var intentGuidelines = map[string]string{
	"GREETING":              "Réponse chaleureuse et professionnelle. Demandez comment vous pouvez aider.",
	"CLAIM":                 "Ton empathique et rassurant. Guidez sur le processus sans donner de détails spécifiques au contrat.",
	"PROBLEM":               "Montrez de l'empathie, proposez des solutions.",
	"INQUIRY":               "Réponse informative et utile.",
	"CONTRACT_CANCELLATION": "Expliquez la démarche générale de résiliation sans engagement contractuel.",
}

const baseSystemPrompt = `Vous êtes un assistant vocal pour une compagnie d'assurance française.
Répondez en français, en deux phrases au maximum, sur un ton professionnel.`

// HTTPGenerator talks to a chat-completions endpoint with a hard
// per-call timeout.
type HTTPGenerator struct {
	url    string
	apiKey string
	model  string
	httpc  *http.Client
	log    *logrus.Entry
}

func NewHTTPGenerator(url, apiKey, model string, timeout time.Duration, log *logrus.Entry) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		apiKey: apiKey,
		model:  model,
		httpc:  &http.Client{Timeout: timeout},
		log:    log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, userText string, contextMsgs []string, intent string) (string, error) {
	sys := baseSystemPrompt
	if guide, ok := intentGuidelines[strings.ToUpper(intent)]; ok {
		sys += "\n" + guide
	}
	if len(contextMsgs) > 0 {
		sys += "\nContexte récent de l'appel:\n" + strings.Join(contextMsgs, "\n")
	}

	body, _ := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: sys},
			{Role: "user", Content: userText},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("responder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("responder status %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("responder decode: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("responder: empty reply")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
