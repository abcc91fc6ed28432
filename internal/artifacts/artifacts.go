// Package artifacts writes the per-batch files a cycle leaves behind: the raw
// collected batch, every generated prompt with its evaluations, and the
// prompts the consensus gate rejected.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwiater/sieve/internal/prompt"
)

// Store writes artifacts under one directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it when missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the artifact path for a batch and kind ("collected", "prompts", "rejected").
func (s *Store) Path(fp, collector, generator, kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%s.%s.%s.json", fp, collector, generator, kind))
}

// SaveCollected persists the raw batch. It must succeed before the batch's
// dedup marker is written.
func (s *Store) SaveCollected(fp, collector, generator string, batch any) (string, error) {
	return s.write(s.Path(fp, collector, generator, "collected"), batch)
}

// SavePrompts persists every generated prompt before gating.
func (s *Store) SavePrompts(fp, collector, generator string, records []prompt.Record) (string, error) {
	return s.write(s.Path(fp, collector, generator, "prompts"), records)
}

// SaveRejected persists the prompts the gate dropped, with their reasons.
func (s *Store) SaveRejected(fp, collector, generator string, records []prompt.Record) (string, error) {
	return s.write(s.Path(fp, collector, generator, "rejected"), records)
}

func (s *Store) write(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
