// internal/providers/multiplex/provider_test.go
package multiplex

import (
	"context"
	"testing"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/providers"
)

type stubProvider struct {
	streamCalled bool
	closeCalled  int
}

func (s *stubProvider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error {
	return nil
}

func (s *stubProvider) Stream(ctx context.Context, req providers.StreamRequest, callbacks providers.StreamCallbacks) error {
	s.streamCalled = true
	return nil
}

func (s *stubProvider) Close() error {
	s.closeCalled++
	return nil
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		"":          "ollama",
		"Ollama":    "ollama",
		"llama.cpp": "openai",
		"llamacpp":  "openai",
		" OPENAI ":  "openai",
		"custom":    "custom",
	}

	for input, want := range tests {
		if got := NormalizeType(input); got != want {
			t.Fatalf("NormalizeType(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStreamRoutesByHostType(t *testing.T) {
	ollamaStub := &stubProvider{}
	openaiStub := &stubProvider{}
	p := New(map[string]providers.ChatProvider{
		"ollama":    ollamaStub,
		"llama.cpp": openaiStub,
	})

	if err := p.Stream(context.Background(), providers.StreamRequest{Host: appconfig.Host{Type: "openai"}}, providers.StreamCallbacks{}); err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if !openaiStub.streamCalled || ollamaStub.streamCalled {
		t.Fatal("expected openai provider to receive the call")
	}

	if err := p.Stream(context.Background(), providers.StreamRequest{Host: appconfig.Host{}}, providers.StreamCallbacks{}); err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if !ollamaStub.streamCalled {
		t.Fatal("expected empty host type to route to ollama")
	}
}

func TestUnknownHostType(t *testing.T) {
	p := New(map[string]providers.ChatProvider{"ollama": &stubProvider{}})
	if err := p.EnsureModelReady(context.Background(), appconfig.Host{Type: "custom"}, "m"); err == nil {
		t.Fatal("expected error for unregistered host type")
	}
}

func TestCloseClosesEachProviderOnce(t *testing.T) {
	shared := &stubProvider{}
	p := New(map[string]providers.ChatProvider{
		"ollama": shared,
		"openai": shared,
	})
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if shared.closeCalled != 1 {
		t.Fatalf("expected a single close, got %d", shared.closeCalled)
	}
}
