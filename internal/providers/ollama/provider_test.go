package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/providers"
)

func newTestProvider() *Provider {
	return New(&appconfig.Config{TimeoutSeconds: 5})
}

func TestStreamNonStreaming(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Answer: C"},"done":true,"eval_count":3}`))
	}))
	defer server.Close()

	temp := 0.0
	host := appconfig.Host{Name: "local", URL: server.URL, Parameters: appconfig.Parameters{Temperature: &temp}}
	req := providers.UserPrompt(host, "llama3", "be terse", "question?")
	text, meta, err := providers.Complete(context.Background(), newTestProvider(), req)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "Answer: C" {
		t.Fatalf("unexpected text %q", text)
	}
	if meta.EvalCount != 3 || !meta.Done {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if got["stream"] != false {
		t.Fatalf("expected stream=false, got %v", got["stream"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %v", got["messages"])
	}
	opts, _ := got["options"].(map[string]any)
	if opts["temperature"] != 0.0 {
		t.Fatalf("expected temperature option, got %v", opts)
	}
}

func TestStreamChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"Par"},"done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"message":{"content":"is"},"done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"model":"m","done":true,"total_duration":10}` + "\n"))
	}))
	defer server.Close()

	var parts []string
	var meta providers.StreamMetadata
	err := newTestProvider().Stream(context.Background(), providers.StreamRequest{
		Host:  appconfig.Host{URL: server.URL},
		Model: "m",
	}, providers.StreamCallbacks{
		OnChunk:    func(c providers.ChatMessage) error { parts = append(parts, c.Content); return nil },
		OnComplete: func(m providers.StreamMetadata) error { meta = m; return nil },
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if strings.Join(parts, "") != "Paris" {
		t.Fatalf("unexpected parts %v", parts)
	}
	if meta.TotalDuration != 10 {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestStreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	err := newTestProvider().Stream(context.Background(), providers.StreamRequest{
		Host:             appconfig.Host{URL: server.URL},
		Model:            "missing",
		DisableStreaming: true,
	}, providers.StreamCallbacks{})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestEnsureModelReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer server.Close()

	if err := newTestProvider().EnsureModelReady(context.Background(), appconfig.Host{URL: server.URL}, "m"); err != nil {
		t.Fatalf("EnsureModelReady returned error: %v", err)
	}
}
