package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicebot/agent/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// CheckAll probes the external AI endpoints the decision engine
// depends on.
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkChatEndpoint(ctx, "classifier", cfg.Classifier.URL, cfg.Classifier.APIKey, cfg.Classifier.Model),
		checkChatEndpoint(ctx, "responder", cfg.Responder.URL, cfg.Responder.APIKey, cfg.Responder.Model),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

// checkChatEndpoint sends a single-token completion request, which
// works with keys scoped to inference only.
func checkChatEndpoint(ctx context.Context, name, url, apiKey, model string) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}

	if apiKey == "" {
		result.Error = "API key not set"
		result.Latency = time.Since(start)
		return result
	}

	body := fmt.Sprintf(`{"model":%q,"max_tokens":1,"messages":[{"role":"user","content":"."}]}`, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	if resp.StatusCode == 401 {
		result.Error = "invalid API key (401)"
		return result
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(b))
		return result
	}
	io.Copy(io.Discard, resp.Body)

	result.OK = true
	return result
}
