package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/providers"
)

const judgeSystemPrompt = `You grade answers. Compare the candidate answer with the reference answer and decide whether they mean the same thing.
Reply with JSON only: {"score": <number between 0 and 1>, "reason": "<one short sentence>"}.`

var judgeSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["score"],
  "properties": {
    "score":  {"type": "number"},
    "reason": {"type": "string"}
  }
}`)

type judgeVerdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Judge scores open-ended responses by asking a judge model to compare them
// with the expected answer.
type Judge struct {
	Provider providers.ChatProvider
	Host     appconfig.Host
	Model    string
}

// NewJudge returns a Judge bound to one model on one host.
func NewJudge(provider providers.ChatProvider, host appconfig.Host, model string) *Judge {
	return &Judge{Provider: provider, Host: host, Model: model}
}

// ScoreOne implements Scorer.
func (j *Judge) ScoreOne(ctx context.Context, in Input) (*Score, error) {
	expected := strings.TrimSpace(in.Prompt.ExpectedAnswer)
	if expected == "" {
		return nil, ErrNoExpectedAnswer
	}
	answer := normalizeResponse(in.Response)
	if answer == "" {
		return nil, nil
	}

	userPrompt := fmt.Sprintf("Question:\n%s\n\nReference answer:\n%s\n\nCandidate answer:\n%s",
		strings.TrimSpace(in.Prompt.Question), expected, answer)
	req := providers.UserPrompt(j.Host, j.Model, judgeSystemPrompt, userPrompt)
	req.JSONMode = true

	raw, _, err := providers.Complete(ctx, j.Provider, req)
	if err != nil {
		return nil, fmt.Errorf("judge %s: %w", j.Model, err)
	}
	verdict, err := parseVerdict(raw)
	if err != nil {
		return nil, fmt.Errorf("judge %s: %w", j.Model, err)
	}
	return &Score{Value: clamp(verdict.Score), Reason: verdict.Reason}, nil
}

func parseVerdict(raw string) (judgeVerdict, error) {
	body := stripFences(raw)
	result, err := gojsonschema.Validate(judgeSchema, gojsonschema.NewStringLoader(body))
	if err != nil {
		return judgeVerdict{}, fmt.Errorf("invalid verdict json: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return judgeVerdict{}, fmt.Errorf("verdict does not match schema: %s", strings.Join(msgs, "; "))
	}
	var v judgeVerdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return judgeVerdict{}, err
	}
	return v, nil
}

// stripFences removes a surrounding ``` block some models add around JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
