package classifier

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

const severitySystemPrompt = `Tu analyses des messages d'appelants pour une compagnie d'assurance.
Réponds uniquement avec un objet JSON:
{"requires_escalation": bool, "reason": "court motif", "confidence": 0.0-1.0}
requires_escalation est vrai seulement pour une urgence réelle (danger vital, crime en cours).`

// HTTPSeverity calls a chat-completions style endpoint once per
// utterance with a hard timeout. No retries: a failed or slow call is
// an error and the caller falls back to its conservative default.
type HTTPSeverity struct {
	url    string
	apiKey string
	model  string
	httpc  *http.Client
	log    *logrus.Entry
}

func NewHTTPSeverity(url, apiKey, model string, timeout time.Duration, log *logrus.Entry) *HTTPSeverity {
	return &HTTPSeverity{
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

func (c *HTTPSeverity) Analyze(ctx context.Context, text string) (Severity, error) {
	body, _ := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: severitySystemPrompt},
			{Role: "user", Content: text},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Severity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Severity{}, fmt.Errorf("severity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Severity{}, fmt.Errorf("severity status %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Severity{}, fmt.Errorf("severity decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Severity{}, fmt.Errorf("severity: empty choices")
	}

	var sev Severity
	content := extractJSON(cr.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &sev); err != nil {
		return Severity{}, fmt.Errorf("severity verdict parse: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"escalate":   sev.RequiresEscalation,
		"confidence": sev.Confidence,
	}).Debug("severity verdict")
	return sev, nil
}

// extractJSON pulls the first {...} block out of a model reply that may
// wrap the verdict in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
