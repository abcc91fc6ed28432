// internal/providers/openai/provider.go
// Package openai provides a ChatProvider for OpenAI-compatible chat completion
// APIs, which covers llama.cpp servers and hosted gateways alike.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/providers"
)

// Provider implements the providers.ChatProvider interface over /v1/chat/completions.
type Provider struct {
	client  *http.Client
	timeout time.Duration
}

// New constructs a Provider configured with the application's request timeout.
func New(cfg *appconfig.Config) *Provider {
	timeout := cfg.RequestTimeout()
	return &Provider{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: timeout,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta openAIMessage `json:"delta"`
	} `json:"choices"`
}

// EnsureModelReady is a no-op: OpenAI-compatible servers load models on first use.
func (p *Provider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error {
	return nil
}

// Stream issues a chat request and forwards output to the provided callbacks.
func (p *Provider) Stream(ctx context.Context, req providers.StreamRequest, callbacks providers.StreamCallbacks) error {
	messages := req.History
	if req.SystemPrompt != "" {
		messages = append([]providers.ChatMessage{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}
	wire := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		wire = append(wire, openAIMessage{Role: role, Content: strings.TrimSpace(m.Content)})
	}

	payload := map[string]any{
		"model":    req.Model,
		"messages": wire,
		"stream":   !req.DisableStreaming,
	}
	applyParameters(payload, req.Parameters)
	if req.JSONMode {
		payload["response_format"] = map[string]any{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	hostID := providers.HostIdentifier(req.Host)
	logging.LogRequest("SIEVE->LLM", hostID, req.Model, body)

	streamCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := completionsURL(req.Host.URL)
	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(req.Host.APIKey); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}
	if !req.DisableStreaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		logging.LogRequest("LLM->SIEVE", hostID, req.Model, raw)
		return fmt.Errorf("openai: %s returned %s: %s", endpoint, resp.Status, strings.TrimSpace(string(raw)))
	}

	if req.DisableStreaming {
		return p.handleNonStreaming(resp, req, callbacks)
	}
	return p.handleStreaming(resp, req, callbacks)
}

func (p *Provider) handleNonStreaming(resp *http.Response, req providers.StreamRequest, callbacks providers.StreamCallbacks) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	logging.LogRequest("LLM->SIEVE", providers.HostIdentifier(req.Host), req.Model, body)

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return err
	}
	if parsed.Error != nil {
		return fmt.Errorf("openai: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return errors.New("openai: chat response contained no choices")
	}

	content := parsed.Choices[0].Message.Content
	role := parsed.Choices[0].Message.Role
	if role == "" {
		role = "assistant"
	}
	if callbacks.OnChunk != nil && strings.TrimSpace(content) != "" {
		if err := callbacks.OnChunk(providers.ChatMessage{Role: role, Content: content}); err != nil {
			return err
		}
	}
	if callbacks.OnComplete != nil {
		modelName := parsed.Model
		if modelName == "" {
			modelName = req.Model
		}
		meta := providers.StreamMetadata{
			Model:           modelName,
			CreatedAt:       time.Now(),
			Done:            true,
			PromptEvalCount: parsed.Usage.PromptTokens,
			EvalCount:       parsed.Usage.CompletionTokens,
		}
		if err := callbacks.OnComplete(meta); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) handleStreaming(resp *http.Response, req providers.StreamRequest, callbacks providers.StreamCallbacks) error {
	reader := bufio.NewReader(resp.Body)
	var finalModel string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
			if data == "[DONE]" {
				break
			}
			logging.LogRequest("LLM->SIEVE", providers.HostIdentifier(req.Host), req.Model, data)

			var chunk chatStreamChunk
			if uerr := json.Unmarshal([]byte(data), &chunk); uerr != nil {
				return uerr
			}
			if chunk.Model != "" {
				finalModel = chunk.Model
			}
			if len(chunk.Choices) > 0 && callbacks.OnChunk != nil && chunk.Choices[0].Delta.Content != "" {
				role := chunk.Choices[0].Delta.Role
				if role == "" {
					role = "assistant"
				}
				if cerr := callbacks.OnChunk(providers.ChatMessage{Role: role, Content: chunk.Choices[0].Delta.Content}); cerr != nil {
					return cerr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if callbacks.OnComplete != nil {
		modelName := finalModel
		if modelName == "" {
			modelName = req.Model
		}
		meta := providers.StreamMetadata{
			Model:     modelName,
			CreatedAt: time.Now(),
			Done:      true,
		}
		if err := callbacks.OnComplete(meta); err != nil {
			return err
		}
	}
	return nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func completionsURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func applyParameters(payload map[string]any, params appconfig.Parameters) {
	if params.TopK != nil {
		payload["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		payload["top_p"] = *params.TopP
	}
	if params.Temperature != nil {
		payload["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		payload["max_tokens"] = *params.MaxTokens
	}
	if params.Seed != nil {
		payload["seed"] = *params.Seed
	}
}
