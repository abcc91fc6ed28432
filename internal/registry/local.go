package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mwiater/sieve/internal/prompt"
)

// LocalUploader appends entries to {dir}/{benchmarkID}/prompts.jsonl and
// scores.jsonl, skipping hashes already present.
type LocalUploader struct {
	dir string
	mu  sync.Mutex
}

// NewLocalUploader creates dir when missing.
func NewLocalUploader(dir string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	return &LocalUploader{dir: dir}, nil
}

// Path returns the JSONL file for a prompt set and kind.
func (u *LocalUploader) Path(benchmarkID int, kind string) string {
	return filepath.Join(u.dir, strconv.Itoa(benchmarkID), kind+".jsonl")
}

// UploadPrompts implements Uploader.
func (u *LocalUploader) UploadPrompts(ctx context.Context, prompts []prompt.Candidate, benchmarkID int) (int, error) {
	entries, err := promptEntries(prompts)
	if err != nil {
		return 0, err
	}
	rows := make([]hashed, len(entries))
	for i, e := range entries {
		rows[i] = hashed{hash: e.Hash, value: e}
	}
	return u.append(u.Path(benchmarkID, "prompts"), rows)
}

// UploadScores implements Uploader.
func (u *LocalUploader) UploadScores(ctx context.Context, scores []prompt.Evaluation, benchmarkID int) (int, error) {
	entries, err := scoreEntries(scores)
	if err != nil {
		return 0, err
	}
	rows := make([]hashed, len(entries))
	for i, e := range entries {
		rows[i] = hashed{hash: e.Hash, value: e}
	}
	return u.append(u.Path(benchmarkID, "scores"), rows)
}

type hashed struct {
	hash  string
	value any
}

func (u *LocalUploader) append(path string, rows []hashed) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	seen, err := existingHashes(path)
	if err != nil {
		return 0, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("error opening registry file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	written := 0
	for _, row := range rows {
		if _, dup := seen[row.hash]; dup {
			continue
		}
		if err := encoder.Encode(row.value); err != nil {
			return written, fmt.Errorf("error writing registry entry: %w", err)
		}
		seen[row.hash] = struct{}{}
		written++
	}
	return written, file.Sync()
}

func existingHashes(path string) (map[string]struct{}, error) {
	seen := map[string]struct{}{}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return seen, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var row struct {
			Hash string `json:"hash"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil || row.Hash == "" {
			continue
		}
		seen[row.Hash] = struct{}{}
	}
	return seen, scanner.Err()
}
