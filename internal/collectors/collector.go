// Package collectors fetches raw item batches from external sources.
package collectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrUnknown is returned by New for a collector name that is not registered.
var ErrUnknown = errors.New("unknown collector")

// Item is one opaque record of a batch.
type Item = map[string]any

// Batch is the ordered list of items a collector returned for one cycle.
type Batch = []Item

// Collector fetches a batch from a locator.
type Collector interface {
	ID() string
	Collect(ctx context.Context, locator string, opts map[string]any) (Batch, error)
}

const defaultHTTPTimeout = 30 * time.Second

var registry = map[string]func(*http.Client) Collector{
	"rss":  func(c *http.Client) Collector { return &RSS{Client: c} },
	"json": func(c *http.Client) Collector { return &JSON{Client: c} },
}

// New returns the collector registered under name. A nil client gets a
// default one with a fixed timeout.
func New(name string, client *http.Client) (Collector, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return factory(client), nil
}

// Names lists the registered collectors.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fetch(ctx context.Context, client *http.Client, locator string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "sieve/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", locator, resp.Status)
	}
	return resp, nil
}
