// internal/providerfactory/factory.go
package providerfactory

import (
	"fmt"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/providers"
	"github.com/mwiater/sieve/internal/providers/multiplex"
	"github.com/mwiater/sieve/internal/providers/ollama"
	"github.com/mwiater/sieve/internal/providers/openai"
)

// NewChatProvider builds the chat provider for the configured hosts. A single
// host type yields that provider directly; mixed types are routed through a
// multiplex provider.
func NewChatProvider(cfg *appconfig.Config) (providers.ChatProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}

	types, err := collectHostTypes(cfg)
	if err != nil {
		return nil, err
	}

	built := make(map[string]providers.ChatProvider, len(types))
	for hostType := range types {
		switch hostType {
		case multiplex.TypeOllama:
			built[hostType] = ollama.New(cfg)
		case multiplex.TypeOpenAI:
			built[hostType] = openai.New(cfg)
		}
	}

	if len(built) == 1 {
		for hostType, provider := range built {
			logging.LogEvent("chat provider ready: %s", hostType)
			return provider, nil
		}
	}
	logging.LogEvent("chat provider ready: multiplexing %d host types", len(built))
	return multiplex.New(built), nil
}

func collectHostTypes(cfg *appconfig.Config) (map[string]bool, error) {
	types := map[string]bool{}
	for _, host := range cfg.Hosts {
		hostType := multiplex.NormalizeType(host.Type)
		switch hostType {
		case multiplex.TypeOllama, multiplex.TypeOpenAI:
			types[hostType] = true
		default:
			return nil, fmt.Errorf("unsupported host type %q for host %q", host.Type, host.Name)
		}
	}
	if len(types) == 0 {
		types[multiplex.TypeOllama] = true
	}
	return types, nil
}
