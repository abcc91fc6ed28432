package fingerprint

import (
	"strings"
	"testing"
)

func TestDigestIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{"a": 1, "b": 2}
	b := map[string]any{"b": 2, "a": 1}

	da, err := Digest(a)
	if err != nil {
		t.Fatalf("Digest returned error: %v", err)
	}
	db, err := Digest(b)
	if err != nil {
		t.Fatalf("Digest returned error: %v", err)
	}
	if da != db {
		t.Fatalf("expected equal digests, got %s and %s", da, db)
	}
}

func TestDigestIgnoresNestedKeyOrderAcrossTypes(t *testing.T) {
	type item struct {
		Title string         `json:"title"`
		Meta  map[string]any `json:"meta"`
	}
	structured := []item{{Title: "x", Meta: map[string]any{"z": true, "y": []any{1, "two"}}}}
	raw := []any{map[string]any{"meta": map[string]any{"y": []any{1, "two"}, "z": true}, "title": "x"}}

	ds, err := Digest(structured)
	if err != nil {
		t.Fatalf("Digest returned error: %v", err)
	}
	dr, err := Digest(raw)
	if err != nil {
		t.Fatalf("Digest returned error: %v", err)
	}
	if ds != dr {
		t.Fatalf("expected struct and map forms to share a digest")
	}
}

func TestDigestChangesWithAnyValue(t *testing.T) {
	base := []any{map[string]any{"url": "https://example.com/a", "title": "A"}}
	cases := []any{
		[]any{map[string]any{"url": "https://example.com/a?utm=1", "title": "A"}},
		[]any{map[string]any{"url": "https://example.com/a", "title": "B"}},
		[]any{map[string]any{"url": "https://example.com/a", "title": "A", "extra": nil}},
	}

	want, err := Digest(base)
	if err != nil {
		t.Fatalf("Digest returned error: %v", err)
	}
	for i, c := range cases {
		got, err := Digest(c)
		if err != nil {
			t.Fatalf("case %d: Digest returned error: %v", i, err)
		}
		if got == want {
			t.Fatalf("case %d: expected a different digest", i)
		}
	}
}

func TestArrayOrderIsSignificant(t *testing.T) {
	a, _ := Digest([]any{1, 2})
	b, _ := Digest([]any{2, 1})
	if a == b {
		t.Fatal("expected array order to change the digest")
	}
}

func TestCanonicalizeSortsAndKeepsHTML(t *testing.T) {
	out, err := Canonicalize(map[string]any{"b": "<x>", "a": 1.50})
	if err != nil {
		t.Fatalf("Canonicalize returned error: %v", err)
	}
	if string(out) != `{"a":1.5,"b":"<x>"}` {
		t.Fatalf("unexpected canonical form: %s", out)
	}
}

func TestOfReturnsStableCID(t *testing.T) {
	fp1, err := Of(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Of returned error: %v", err)
	}
	fp2, err := Of(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Of returned error: %v", err)
	}
	if fp1 != fp2 {
		t.Fatalf("expected identical fingerprints, got %+v and %+v", fp1, fp2)
	}
	if !strings.HasPrefix(fp1.CID, "b") {
		t.Fatalf("expected base32 CIDv1, got %s", fp1.CID)
	}
	if len(fp1.Digest) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(fp1.Digest))
	}
}

func TestCanonicalizeRejectsUnmarshalable(t *testing.T) {
	if _, err := Canonicalize(map[string]any{"f": func() {}}); err == nil {
		t.Fatal("expected error for function value")
	}
}
