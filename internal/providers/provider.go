// internal/providers/provider.go

// Package providers defines the interfaces for interacting with model backends.
// It provides a common abstraction for sending chat requests and receiving
// (optionally streamed) responses regardless of the underlying HTTP API.
package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mwiater/sieve/internal/appconfig"
)

// ErrEmptyResponse is returned by Complete when a backend answered with no text.
var ErrEmptyResponse = errors.New("empty model response")

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// StreamMetadata contains metadata about a completed chat stream.
type StreamMetadata struct {
	Model           string
	CreatedAt       time.Time
	Done            bool
	TotalDuration   int64
	PromptEvalCount int
	EvalCount       int
}

// StreamRequest encapsulates all the information needed to initiate a chat stream.
type StreamRequest struct {
	Host             appconfig.Host
	Model            string
	History          []ChatMessage
	SystemPrompt     string
	Parameters       appconfig.Parameters
	JSONMode         bool
	DisableStreaming bool
}

// StreamCallbacks defines the callback functions that are invoked during a chat stream.
// OnChunk is called for each message chunk received, and OnComplete is called when the stream is finished.
type StreamCallbacks struct {
	OnChunk    func(ChatMessage) error
	OnComplete func(StreamMetadata) error
}

// ChatProvider is the interface that all model backends implement.
type ChatProvider interface {
	// EnsureModelReady checks if a model is ready to be used and loads it if necessary.
	EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error
	// Stream sends a chat request and forwards the answer to the callbacks.
	Stream(ctx context.Context, req StreamRequest, callbacks StreamCallbacks) error
	// Close cleans up any resources used by the provider.
	Close() error
}

// Complete runs a non-streaming request and returns the trimmed answer text.
func Complete(ctx context.Context, provider ChatProvider, req StreamRequest) (string, StreamMetadata, error) {
	var output strings.Builder
	var meta StreamMetadata

	req.DisableStreaming = true
	callbacks := StreamCallbacks{
		OnChunk: func(chunk ChatMessage) error {
			output.WriteString(chunk.Content)
			return nil
		},
		OnComplete: func(m StreamMetadata) error {
			meta = m
			return nil
		},
	}

	if err := provider.Stream(ctx, req, callbacks); err != nil {
		return "", meta, err
	}

	text := strings.TrimSpace(output.String())
	if text == "" {
		return "", meta, ErrEmptyResponse
	}
	return text, meta, nil
}

// UserPrompt builds a single-turn request.
func UserPrompt(host appconfig.Host, model, systemPrompt, prompt string) StreamRequest {
	return StreamRequest{
		Host:         host,
		Model:        model,
		SystemPrompt: systemPrompt,
		Parameters:   host.Parameters,
		History: []ChatMessage{{
			Role:    "user",
			Content: prompt,
		}},
		DisableStreaming: true,
	}
}

// HostIdentifier returns a label for a host, preferring the name over the URL.
func HostIdentifier(host appconfig.Host) string {
	if name := strings.TrimSpace(host.Name); name != "" {
		return name
	}
	if url := strings.TrimSpace(host.URL); url != "" {
		return url
	}
	return "unknown-host"
}
