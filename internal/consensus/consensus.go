// Package consensus decides, from cross-model agreement, whether a generated
// prompt is published and how it is tagged.
package consensus

import (
	"github.com/samber/lo"

	"github.com/mwiater/sieve/internal/prompt"
)

// Tags applied by the gate.
const (
	TagProvenance    = "sieve-generated"
	TagConsensus     = "consensus-answer"
	TagDiverse       = "diverse-answer"
	TagMajority      = "majority-answer"
	TagAutoGenerated = "auto-generated"
	TagAnswerSimilar = "auto-qa-llm-answer-similar"

	// ReasonTooEasy marks a multiple-choice prompt every model answered correctly.
	ReasonTooEasy = "too-easy"
)

// Decide returns the verdict for one prompt given its surviving evaluations.
func Decide(p prompt.Candidate, evals []prompt.Evaluation) prompt.Decision {
	if !p.IsMultipleChoice() {
		return prompt.Decision{Keep: true, Tags: []string{TagProvenance}}
	}

	if len(evals) > 0 && lo.EveryBy(evals, func(e prompt.Evaluation) bool { return e.Score == 1 }) {
		return prompt.Decision{Keep: false, Reason: ReasonTooEasy}
	}

	tags := append(qualityTags(evals), TagProvenance)
	return prompt.Decision{Keep: true, Tags: tags}
}

func qualityTags(evals []prompt.Evaluation) []string {
	answers := lo.FilterMap(evals, func(e prompt.Evaluation, _ int) (string, bool) {
		return e.ExtractedAnswer, e.HasAnswer()
	})
	count := len(answers)
	if count == 0 {
		return nil
	}
	distinct := len(lo.Uniq(answers))

	switch {
	case distinct == 1:
		return []string{TagConsensus}
	case distinct == count:
		return []string{TagDiverse}
	case float64(distinct) >= float64(count)/2:
		return []string{TagMajority, TagAutoGenerated, TagAnswerSimilar}
	default:
		return nil
	}
}

// Apply runs Decide and copies the resulting tags onto the prompt.
func Apply(p prompt.Candidate, evals []prompt.Evaluation) (prompt.Candidate, prompt.Decision) {
	d := Decide(p, evals)
	if d.Keep {
		p.Tags = append([]string(nil), p.Tags...)
		p.AddTags(d.Tags...)
	}
	return p, d
}
