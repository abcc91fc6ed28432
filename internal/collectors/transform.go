package collectors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mwiater/sieve/internal/appconfig"
)

// Transformer normalizes a batch before it is fingerprinted, so volatile
// noise does not make an unchanged batch look new.
type Transformer interface {
	Transform(Batch) Batch
}

// Identity returns the batch unchanged.
type Identity struct{}

// Transform implements Transformer.
func (Identity) Transform(b Batch) Batch { return b }

// StripQuery removes query strings and fragments from URL-valued fields.
type StripQuery struct {
	Fields []string
}

// Transform implements Transformer.
func (s StripQuery) Transform(b Batch) Batch {
	return mapItems(b, func(item Item) {
		for _, f := range s.Fields {
			raw, ok := item[f].(string)
			if !ok || raw == "" {
				continue
			}
			u, err := url.Parse(raw)
			if err != nil {
				continue
			}
			u.RawQuery = ""
			u.Fragment = ""
			item[f] = u.String()
		}
	})
}

// DropFields deletes keys from every item.
type DropFields struct {
	Fields []string
}

// Transform implements Transformer.
func (d DropFields) Transform(b Batch) Batch {
	return mapItems(b, func(item Item) {
		for _, f := range d.Fields {
			delete(item, f)
		}
	})
}

// Chain applies transformers in order.
type Chain []Transformer

// Transform implements Transformer.
func (c Chain) Transform(b Batch) Batch {
	for _, t := range c {
		b = t.Transform(b)
	}
	return b
}

// TransformerFor builds the transformer described by a source's transform list.
func TransformerFor(specs []appconfig.TransformSpec) (Transformer, error) {
	if len(specs) == 0 {
		return Identity{}, nil
	}
	chain := make(Chain, 0, len(specs))
	for _, spec := range specs {
		switch strings.ToLower(strings.TrimSpace(spec.Type)) {
		case "identity", "":
			chain = append(chain, Identity{})
		case "strip-query":
			chain = append(chain, StripQuery{Fields: spec.Fields})
		case "drop-fields":
			chain = append(chain, DropFields{Fields: spec.Fields})
		default:
			return nil, fmt.Errorf("unknown transform %q", spec.Type)
		}
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// mapItems applies fn to a shallow copy of every item.
func mapItems(b Batch, fn func(Item)) Batch {
	out := make(Batch, len(b))
	for i, item := range b {
		cp := make(Item, len(item))
		for k, v := range item {
			cp[k] = v
		}
		fn(cp)
		out[i] = cp
	}
	return out
}
