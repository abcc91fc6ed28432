package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mwiater/sieve/internal/util"
)

// JSON collects items from an HTTP endpoint returning a JSON array of objects.
type JSON struct {
	Client *http.Client
}

// ID implements Collector.
func (j *JSON) ID() string { return "json" }

// Collect fetches locator. Option "path" is a dotted key path to a nested
// array; option "limit" caps the item count. Non-object entries are skipped.
func (j *JSON) Collect(ctx context.Context, locator string, opts map[string]any) (Batch, error) {
	resp, err := fetch(ctx, j.Client, locator)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", locator, err)
	}

	path := util.StringOption(opts, "path", "")
	node, err := descend(doc, path)
	if err != nil {
		return nil, err
	}
	list, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("json collector: %q is not an array", displayPath(path))
	}

	limit := util.IntOption(opts, "limit", 0)
	out := make(Batch, 0, len(list))
	for _, entry := range list {
		if limit > 0 && len(out) >= limit {
			break
		}
		if obj, ok := entry.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func descend(doc any, path string) (any, error) {
	if path == "" {
		return doc, nil
	}
	node := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("json collector: cannot descend into %q", part)
		}
		node, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("json collector: key %q not found", part)
		}
	}
	return node, nil
}

func displayPath(path string) string {
	if path == "" {
		return "$"
	}
	return path
}
