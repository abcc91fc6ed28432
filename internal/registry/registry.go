// Package registry publishes accepted prompts and their scores to the shared
// benchmark registry.
package registry

import (
	"context"
	"fmt"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/fingerprint"
	"github.com/mwiater/sieve/internal/prompt"
)

// Uploader sends prompts and scores to a prompt set. Both calls return the
// number of entries the registry accepted.
type Uploader interface {
	UploadPrompts(ctx context.Context, prompts []prompt.Candidate, benchmarkID int) (int, error)
	UploadScores(ctx context.Context, scores []prompt.Evaluation, benchmarkID int) (int, error)
}

// PromptEntry is the wire form of one prompt. Hash lets the receiver drop
// duplicates.
type PromptEntry struct {
	Hash   string           `json:"hash"`
	Prompt prompt.Candidate `json:"prompt"`
}

// ScoreEntry is the wire form of one evaluation.
type ScoreEntry struct {
	Hash       string            `json:"hash"`
	Evaluation prompt.Evaluation `json:"evaluation"`
}

// New returns the HTTP client when a registry URL is configured and the
// local JSONL uploader otherwise.
func New(cfg *appconfig.Config) (Uploader, error) {
	if cfg.Registry.URL != "" {
		return NewHTTPClient(cfg.Registry.URL, cfg.Registry.Token, cfg.UploadTimeout()), nil
	}
	return NewLocalUploader(cfg.RegistryDir())
}

func promptEntries(prompts []prompt.Candidate) ([]PromptEntry, error) {
	out := make([]PromptEntry, 0, len(prompts))
	for _, p := range prompts {
		hash, err := fingerprint.CID(p)
		if err != nil {
			return nil, fmt.Errorf("hash prompt %s: %w", p.ID, err)
		}
		out = append(out, PromptEntry{Hash: hash, Prompt: p})
	}
	return out, nil
}

func scoreEntries(scores []prompt.Evaluation) ([]ScoreEntry, error) {
	out := make([]ScoreEntry, 0, len(scores))
	for _, s := range scores {
		// Timing is excluded so a re-run of the same answer hashes the same.
		hash, err := fingerprint.CID(map[string]any{
			"promptId": s.PromptID,
			"host":     s.Host,
			"model":    s.Model,
			"response": s.Response,
			"score":    s.Score,
		})
		if err != nil {
			return nil, fmt.Errorf("hash score %s/%s: %w", s.PromptID, s.Model, err)
		}
		out = append(out, ScoreEntry{Hash: hash, Evaluation: s})
	}
	return out, nil
}
