// Package scoring turns a model response into a numeric score for a prompt.
package scoring

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mwiater/sieve/internal/prompt"
)

// CorrectThreshold is the minimum score counted as a correct answer.
const CorrectThreshold = 0.8

// ErrNoExpectedAnswer is returned when a prompt carries no reference answer to
// score against.
var ErrNoExpectedAnswer = errors.New("scoring: prompt has no expected answer")

// Input is one response to score.
type Input struct {
	Prompt   prompt.Candidate
	Response string
}

// Score is the outcome of scoring one response. Value is in [0,1].
type Score struct {
	Value           float64 `json:"value"`
	ExtractedAnswer string  `json:"extractedAnswer,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// Correct reports whether the score clears CorrectThreshold.
func (s Score) Correct() bool {
	return s.Value >= CorrectThreshold
}

// Scorer scores a single response. A nil Score with a nil error means the
// response could not be scored, which is distinct from a score of zero.
type Scorer interface {
	ScoreOne(ctx context.Context, in Input) (*Score, error)
}

// ForType picks the scorer for a prompt type. Open prompts go to judge; when
// judge is nil they are left unscored.
func ForType(t prompt.Type, judge Scorer) Scorer {
	if t == prompt.TypeMultipleChoice {
		return MultipleChoice{}
	}
	if judge == nil {
		return unscored{}
	}
	return judge
}

type unscored struct{}

func (unscored) ScoreOne(context.Context, Input) (*Score, error) { return nil, nil }

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// normalizeResponse drops reasoning blocks and collapses whitespace.
func normalizeResponse(response string) string {
	trimmed := thinkBlock.ReplaceAllString(strings.TrimSpace(response), "")
	if idx := strings.Index(trimmed, "<think>"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
