package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwiater/sieve/internal/prompt"
)

func TestSaveCollected(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, err := s.SaveCollected("abc", "rss", "llm-mcq", []map[string]any{{"title": "x"}})
	if err != nil {
		t.Fatalf("SaveCollected: %v", err)
	}
	if filepath.Base(path) != "abc.rss.llm-mcq.collected.json" {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil || got[0]["title"] != "x" {
		t.Fatalf("unexpected content %s (%v)", data, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact, found %d entries", len(entries))
	}
}

func TestSavePromptsAndRejected(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	records := []prompt.Record{{
		Prompt:   prompt.Candidate{ID: "p1", Type: prompt.TypeMultipleChoice, Question: "q"},
		Decision: &prompt.Decision{Keep: false, Reason: "too-easy"},
	}}

	if _, err := s.SavePrompts("fp", "c", "g", records); err != nil {
		t.Fatalf("SavePrompts: %v", err)
	}
	path, err := s.SaveRejected("fp", "c", "g", records)
	if err != nil {
		t.Fatalf("SaveRejected: %v", err)
	}
	data, _ := os.ReadFile(path)
	var got []prompt.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Decision == nil || got[0].Decision.Reason != "too-easy" {
		t.Fatalf("unexpected rejected records %+v", got)
	}
	if _, err := os.Stat(s.Path("fp", "c", "g", "prompts")); err != nil {
		t.Fatalf("prompts artifact missing: %v", err)
	}
}
