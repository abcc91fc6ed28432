package pipeline

import (
	"errors"
	"fmt"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/artifacts"
	"github.com/mwiater/sieve/internal/dedup"
	"github.com/mwiater/sieve/internal/evaluator"
	"github.com/mwiater/sieve/internal/providerfactory"
	"github.com/mwiater/sieve/internal/providers"
	"github.com/mwiater/sieve/internal/registry"
	"github.com/mwiater/sieve/internal/scoring"
)

// Runtime is an Orchestrator together with the resources it owns.
type Runtime struct {
	*Orchestrator
	Store    dedup.MarkerStore
	Provider providers.ChatProvider
}

// Close releases the marker store and the model provider.
func (r *Runtime) Close() error {
	return errors.Join(r.Store.Close(), r.Provider.Close())
}

// FromConfig builds the production pipeline: providers from the configured
// hosts, the selected marker store, artifacts under the data directory and
// the configured registry uploader.
func FromConfig(cfg *appconfig.Config) (*Runtime, error) {
	provider, err := providerfactory.NewChatProvider(cfg)
	if err != nil {
		return nil, err
	}
	store, err := dedup.Open(cfg)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("open marker store: %w", err)
	}
	fail := func(err error) (*Runtime, error) {
		store.Close()
		provider.Close()
		return nil, err
	}

	arts, err := artifacts.New(cfg.ArtifactsDir())
	if err != nil {
		return fail(err)
	}
	uploader, err := registry.New(cfg)
	if err != nil {
		return fail(err)
	}

	var judge scoring.Scorer
	if !cfg.Judge.IsZero() {
		host, ok := cfg.HostByName(cfg.Judge.Host)
		if !ok {
			return fail(fmt.Errorf("judge host %q is not configured", cfg.Judge.Host))
		}
		judge = scoring.NewJudge(provider, host, cfg.Judge.Model)
	}

	orch, err := New(cfg, Deps{
		Gate:      dedup.NewGate(store),
		Artifacts: arts,
		Evaluator: evaluator.New(provider, cfg, judge),
		Uploader:  uploader,
		Provider:  provider,
	})
	if err != nil {
		return fail(err)
	}
	return &Runtime{Orchestrator: orch, Store: store, Provider: provider}, nil
}
