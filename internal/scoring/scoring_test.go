package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/prompt"
	"github.com/mwiater/sieve/internal/providers"
)

func mcq(expected string) prompt.Candidate {
	return prompt.Candidate{
		Type:           prompt.TypeMultipleChoice,
		Question:       "Which?",
		Options:        []string{"one", "two", "three", "four"},
		ExpectedAnswer: expected,
	}
}

func TestExtractLetter(t *testing.T) {
	valid := []string{"A", "B", "C", "D"}
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare letter", "B", "B"},
		{"bare with punctuation", " (c). ", "C"},
		{"answer label", "I think the Answer: D because of reasons", "D"},
		{"answer is", "The answer is a.", "A"},
		{"think block ignored", "<think>maybe A</think>C", "C"},
		{"last standalone letter", "Between A and C I pick C", "C"},
		{"article after label", "The answer is a bit unclear, but C.", "C"},
		{"sentence-initial article", "Option C. A country cannot do that.", "C"},
		{"uppercase after label", "The answer is B because the river rose.", "B"},
		{"mid-sentence letter before word", "I would pick D over the others", "D"},
		{"letter outside options", "E", ""},
		{"nothing", "no idea", ""},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractLetter(tt.response, valid); got != tt.want {
				t.Fatalf("ExtractLetter(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}

func TestMultipleChoiceScore(t *testing.T) {
	s, err := MultipleChoice{}.ScoreOne(context.Background(), Input{Prompt: mcq("B"), Response: "Answer: B"})
	if err != nil || s == nil {
		t.Fatalf("unexpected result %v %v", s, err)
	}
	if s.Value != 1 || !s.Correct() || s.ExtractedAnswer != "B" {
		t.Fatalf("expected correct score, got %+v", s)
	}

	s, err = MultipleChoice{}.ScoreOne(context.Background(), Input{Prompt: mcq("B"), Response: "A"})
	if err != nil || s == nil || s.Value != 0 || s.ExtractedAnswer != "A" {
		t.Fatalf("expected zero score with answer A, got %+v %v", s, err)
	}
}

func TestMultipleChoiceUnscorable(t *testing.T) {
	s, err := MultipleChoice{}.ScoreOne(context.Background(), Input{Prompt: mcq("B"), Response: "unsure"})
	if err != nil || s != nil {
		t.Fatalf("expected nil score, got %+v %v", s, err)
	}
	if _, err := (MultipleChoice{}).ScoreOne(context.Background(), Input{Prompt: mcq(""), Response: "A"}); !errors.Is(err, ErrNoExpectedAnswer) {
		t.Fatalf("expected ErrNoExpectedAnswer, got %v", err)
	}
}

type cannedProvider struct {
	reply string
	req   providers.StreamRequest
}

func (c *cannedProvider) EnsureModelReady(context.Context, appconfig.Host, string) error { return nil }

func (c *cannedProvider) Stream(ctx context.Context, req providers.StreamRequest, cb providers.StreamCallbacks) error {
	c.req = req
	if cb.OnChunk != nil {
		if err := cb.OnChunk(providers.ChatMessage{Role: "assistant", Content: c.reply}); err != nil {
			return err
		}
	}
	return nil
}

func (c *cannedProvider) Close() error { return nil }

func open(expected string) prompt.Candidate {
	return prompt.Candidate{Type: prompt.TypeOpen, Question: "Capital of France?", ExpectedAnswer: expected}
}

func TestJudgeScores(t *testing.T) {
	p := &cannedProvider{reply: "```json\n{\"score\": 1.4, \"reason\": \"same city\"}\n```"}
	j := NewJudge(p, appconfig.Host{Name: "judge"}, "judge-model")
	s, err := j.ScoreOne(context.Background(), Input{Prompt: open("Paris"), Response: "paris"})
	if err != nil {
		t.Fatalf("ScoreOne returned error: %v", err)
	}
	if s.Value != 1 || s.Reason != "same city" {
		t.Fatalf("expected clamped score, got %+v", s)
	}
	if !p.req.JSONMode || p.req.Model != "judge-model" {
		t.Fatalf("unexpected judge request %+v", p.req)
	}
}

func TestJudgeRejectsMalformedVerdict(t *testing.T) {
	j := NewJudge(&cannedProvider{reply: `{"reason":"no score"}`}, appconfig.Host{}, "m")
	if _, err := j.ScoreOne(context.Background(), Input{Prompt: open("Paris"), Response: "Paris"}); err == nil {
		t.Fatal("expected schema error")
	}
}

func TestJudgeNeedsExpectedAnswer(t *testing.T) {
	j := NewJudge(&cannedProvider{reply: `{"score":1}`}, appconfig.Host{}, "m")
	if _, err := j.ScoreOne(context.Background(), Input{Prompt: open(""), Response: "Paris"}); !errors.Is(err, ErrNoExpectedAnswer) {
		t.Fatalf("expected ErrNoExpectedAnswer, got %v", err)
	}
}

func TestForType(t *testing.T) {
	if _, ok := ForType(prompt.TypeMultipleChoice, nil).(MultipleChoice); !ok {
		t.Fatal("expected multiple choice scorer")
	}
	j := NewJudge(&cannedProvider{}, appconfig.Host{}, "m")
	if ForType(prompt.TypeOpen, j) != Scorer(j) {
		t.Fatal("expected judge for open prompts")
	}
	s, err := ForType(prompt.TypeOpen, nil).ScoreOne(context.Background(), Input{Prompt: open("x"), Response: "x"})
	if s != nil || err != nil {
		t.Fatalf("expected unscored result, got %v %v", s, err)
	}
}
