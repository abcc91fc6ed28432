// Package prompt holds the candidate question and evaluation types shared by
// the generators, the evaluator, the consensus gate and the uploaders.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwiater/sieve/internal/fingerprint"
)

// Type distinguishes how a prompt is answered and scored.
type Type string

const (
	TypeMultipleChoice Type = "multiple-choice"
	TypeOpen           Type = "open"
)

// Candidate is a generated question that has not been accepted or rejected yet.
type Candidate struct {
	ID             string         `json:"id"`
	Type           Type           `json:"type"`
	Question       string         `json:"question"`
	Options        []string       `json:"options,omitempty"`
	ExpectedAnswer string         `json:"expectedAnswer,omitempty"`
	SourceLink     string         `json:"sourceLink,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// IsMultipleChoice reports whether the candidate is answered by option letter.
func (c Candidate) IsMultipleChoice() bool {
	return c.Type == TypeMultipleChoice && len(c.Options) > 0
}

// OptionLetter maps a zero-based option index to A, B, C...
func OptionLetter(i int) string {
	if i < 0 || i >= 26 {
		return ""
	}
	return string(rune('A' + i))
}

// Letters returns the option letters valid for this candidate.
func (c Candidate) Letters() []string {
	letters := make([]string, 0, len(c.Options))
	for i := range c.Options {
		if l := OptionLetter(i); l != "" {
			letters = append(letters, l)
		}
	}
	return letters
}

// Render returns the full text sent to a model: the question followed by the
// lettered options for multiple-choice prompts.
func (c Candidate) Render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Question))
	if c.IsMultipleChoice() {
		b.WriteString("\n")
		for i, opt := range c.Options {
			letter := OptionLetter(i)
			if letter == "" {
				break
			}
			fmt.Fprintf(&b, "\n%s. %s", letter, strings.TrimSpace(opt))
		}
	}
	return b.String()
}

// EnsureID derives a stable content ID when the generator did not set one.
func (c *Candidate) EnsureID() error {
	if strings.TrimSpace(c.ID) != "" {
		return nil
	}
	digest, err := fingerprint.Digest(map[string]any{
		"type":     c.Type,
		"question": c.Question,
		"options":  c.Options,
		"expected": c.ExpectedAnswer,
	})
	if err != nil {
		return fmt.Errorf("prompt id: %w", err)
	}
	c.ID = digest[:16]
	return nil
}

// AddTags appends tags that are not present yet, preserving order.
func (c *Candidate) AddTags(tags ...string) {
	seen := make(map[string]struct{}, len(c.Tags))
	for _, t := range c.Tags {
		seen[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		c.Tags = append(c.Tags, t)
	}
}

// Evaluation is one model's answer to one candidate, already scored.
type Evaluation struct {
	PromptID        string        `json:"promptId"`
	Host            string        `json:"host"`
	Model           string        `json:"model"`
	Response        string        `json:"response"`
	Score           float64       `json:"score"`
	Correct         bool          `json:"correct"`
	ExtractedAnswer string        `json:"extractedAnswer,omitempty"`
	ScoreReason     string        `json:"scoreReason,omitempty"`
	Duration        time.Duration `json:"durationNs"`
	EvaluatedAt     time.Time     `json:"evaluatedAt"`
}

// HasAnswer reports whether the scorer extracted a comparable answer.
func (e Evaluation) HasAnswer() bool {
	return strings.TrimSpace(e.ExtractedAnswer) != ""
}

// Decision is the consensus gate verdict for one candidate.
type Decision struct {
	Keep   bool     `json:"keep"`
	Tags   []string `json:"tags,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// Record is the per-candidate trace persisted to the debug artifact.
type Record struct {
	Prompt      Candidate    `json:"prompt"`
	Evaluations []Evaluation `json:"evaluations,omitempty"`
	Decision    *Decision    `json:"decision,omitempty"`
}
