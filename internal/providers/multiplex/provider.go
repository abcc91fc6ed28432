// internal/providers/multiplex/provider.go
// Package multiplex routes provider calls based on host type.
package multiplex

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/providers"
)

// Host type names understood by the router.
const (
	TypeOllama = "ollama"
	TypeOpenAI = "openai"
)

// Provider delegates calls to an underlying provider based on host type.
type Provider struct {
	providers map[string]providers.ChatProvider
}

// New constructs a Provider from a map of host type to provider implementation.
func New(providerMap map[string]providers.ChatProvider) *Provider {
	normalized := make(map[string]providers.ChatProvider, len(providerMap))
	for key, provider := range providerMap {
		normalized[NormalizeType(key)] = provider
	}
	return &Provider{providers: normalized}
}

// EnsureModelReady checks if a model is ready to be used and loads it if necessary.
func (p *Provider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error {
	provider, err := p.providerForHost(host)
	if err != nil {
		return err
	}
	return provider.EnsureModelReady(ctx, host, model)
}

// Stream forwards the request to the provider registered for the host's type.
func (p *Provider) Stream(ctx context.Context, req providers.StreamRequest, callbacks providers.StreamCallbacks) error {
	provider, err := p.providerForHost(req.Host)
	if err != nil {
		return err
	}
	return provider.Stream(ctx, req, callbacks)
}

// Close cleans up any resources used by the provider.
func (p *Provider) Close() error {
	var firstErr error
	seen := map[providers.ChatProvider]struct{}{}
	for _, provider := range p.providers {
		if _, ok := seen[provider]; ok {
			continue
		}
		seen[provider] = struct{}{}
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Provider) providerForHost(host appconfig.Host) (providers.ChatProvider, error) {
	if provider, ok := p.providers[NormalizeType(host.Type)]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("no provider registered for host type %q", host.Type)
}

// NormalizeType folds host type aliases onto the router's canonical names.
// An empty type means ollama.
func NormalizeType(hostType string) string {
	normalized := strings.ToLower(strings.TrimSpace(hostType))
	switch normalized {
	case "", "ollama":
		return TypeOllama
	case "openai", "llama.cpp", "llamacpp":
		return TypeOpenAI
	default:
		return normalized
	}
}
