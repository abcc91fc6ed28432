package consensus

import (
	"reflect"
	"testing"

	"github.com/mwiater/sieve/internal/prompt"
)

func mcq() prompt.Candidate {
	return prompt.Candidate{
		ID:             "p",
		Type:           prompt.TypeMultipleChoice,
		Question:       "q",
		Options:        []string{"a", "b", "c"},
		ExpectedAnswer: "A",
	}
}

func evals(pairs ...any) []prompt.Evaluation {
	out := make([]prompt.Evaluation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, prompt.Evaluation{
			Score:           pairs[i].(float64),
			ExtractedAnswer: pairs[i+1].(string),
		})
	}
	return out
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		evals  []prompt.Evaluation
		keep   bool
		tags   []string
		reason string
	}{
		{"all correct is discarded", evals(1.0, "A", 1.0, "A", 1.0, "A"), false, nil, ReasonTooEasy},
		{"majority", evals(1.0, "A", 0.0, "B", 0.0, "B"), true, []string{TagMajority, TagAutoGenerated, TagAnswerSimilar, TagProvenance}, ""},
		{"consensus on wrong answer", evals(0.0, "B", 0.0, "B", 0.0, "B"), true, []string{TagConsensus, TagProvenance}, ""},
		{"diverse", evals(1.0, "A", 0.0, "B", 0.0, "C"), true, []string{TagDiverse, TagProvenance}, ""},
		{"two agreeing wrong", evals(0.0, "B", 0.0, "B"), true, []string{TagConsensus, TagProvenance}, ""},
		{"two disagreeing", evals(1.0, "A", 0.0, "B"), true, []string{TagDiverse, TagProvenance}, ""},
		{"two correct is discarded", evals(1.0, "A", 1.0, "A"), false, nil, ReasonTooEasy},
		{"no evaluations is kept", nil, true, []string{TagProvenance}, ""},
		{"answers missing are skipped", evals(0.0, "", 0.0, "C", 1.0, "A"), true, []string{TagDiverse, TagProvenance}, ""},
		{"no answers at all", evals(0.0, "", 0.5, ""), true, []string{TagProvenance}, ""},
		{"below half distinct", evals(0.0, "B", 0.0, "B", 0.0, "B", 0.0, "B", 1.0, "A"), true, []string{TagProvenance}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(mcq(), tt.evals)
			if d.Keep != tt.keep || d.Reason != tt.reason {
				t.Fatalf("Decide = %+v, want keep=%v reason=%q", d, tt.keep, tt.reason)
			}
			if !reflect.DeepEqual(d.Tags, tt.tags) {
				t.Fatalf("tags = %v, want %v", d.Tags, tt.tags)
			}
		})
	}
}

func TestDecideOpenPromptPassesThrough(t *testing.T) {
	p := prompt.Candidate{ID: "o", Type: prompt.TypeOpen, Question: "q", ExpectedAnswer: "x"}
	d := Decide(p, evals(1.0, "", 1.0, ""))
	if !d.Keep || !reflect.DeepEqual(d.Tags, []string{TagProvenance}) {
		t.Fatalf("expected open prompt kept with provenance only, got %+v", d)
	}
}

func TestApplyTagsPromptWithoutAliasing(t *testing.T) {
	p := mcq()
	p.Tags = make([]string, 1, 4)
	p.Tags[0] = "news"

	tagged, d := Apply(p, evals(0.0, "B", 0.0, "B"))
	if !d.Keep {
		t.Fatal("expected prompt to be kept")
	}
	want := []string{"news", TagConsensus, TagProvenance}
	if !reflect.DeepEqual(tagged.Tags, want) {
		t.Fatalf("tags = %v, want %v", tagged.Tags, want)
	}
	if len(p.Tags) != 1 {
		t.Fatalf("input prompt tags were modified: %v", p.Tags)
	}
}
