package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/prompt"
)

// HTTPClient posts to {base}/prompt-sets/{id}/prompts and /scores.
type HTTPClient struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPClient returns a client for the registry at base.
func NewHTTPClient(base, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base:   strings.TrimRight(strings.TrimSpace(base), "/"),
		token:  strings.TrimSpace(token),
		client: &http.Client{Timeout: timeout},
	}
}

type countResponse struct {
	Count int `json:"count"`
}

// UploadPrompts implements Uploader.
func (c *HTTPClient) UploadPrompts(ctx context.Context, prompts []prompt.Candidate, benchmarkID int) (int, error) {
	entries, err := promptEntries(prompts)
	if err != nil {
		return 0, err
	}
	return c.post(ctx, benchmarkID, "prompts", map[string]any{"prompts": entries})
}

// UploadScores implements Uploader.
func (c *HTTPClient) UploadScores(ctx context.Context, scores []prompt.Evaluation, benchmarkID int) (int, error) {
	entries, err := scoreEntries(scores)
	if err != nil {
		return 0, err
	}
	return c.post(ctx, benchmarkID, "scores", map[string]any{"scores": entries})
}

func (c *HTTPClient) post(ctx context.Context, benchmarkID int, kind string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	endpoint := fmt.Sprintf("%s/prompt-sets/%d/%s", c.base, benchmarkID, kind)
	logging.LogRequest("SIEVE->REGISTRY", c.base, kind, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", kind, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	logging.LogRequest("REGISTRY->SIEVE", c.base, kind, raw)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("upload %s: %s returned %s: %s", kind, endpoint, resp.Status, strings.TrimSpace(string(raw)))
	}

	var out countResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("upload %s: decode response: %w", kind, err)
	}
	return out.Count, nil
}
