// Package generators turns collected batches into candidate prompts.
package generators

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/collectors"
	"github.com/mwiater/sieve/internal/prompt"
	"github.com/mwiater/sieve/internal/providers"
)

// ErrUnknown is returned by New for a generator name that is not registered.
var ErrUnknown = errors.New("unknown generator")

// Generator produces prompts from a batch. An empty result is not an error.
type Generator interface {
	ID() string
	Generate(ctx context.Context, batch collectors.Batch, opts map[string]any) ([]prompt.Candidate, error)
}

// Deps carries what model-backed generators need.
type Deps struct {
	Provider providers.ChatProvider
	Config   *appconfig.Config
}

var registry = map[string]func(Deps) Generator{
	"llm-mcq":        func(d Deps) Generator { return NewLLMMultipleChoice(d.Provider, d.Config) },
	"headline-cloze": func(Deps) Generator { return HeadlineCloze{} },
}

// New returns the generator registered under name.
func New(name string, deps Deps) (Generator, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return factory(deps), nil
}

// Names lists the registered generators.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func itemString(item collectors.Item, key string) string {
	s, _ := item[key].(string)
	return strings.TrimSpace(s)
}

func limitItems(batch collectors.Batch, max int) collectors.Batch {
	if max > 0 && len(batch) > max {
		return batch[:max]
	}
	return batch
}
