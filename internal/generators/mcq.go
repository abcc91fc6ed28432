package generators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/collectors"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/prompt"
	"github.com/mwiater/sieve/internal/providers"
	"github.com/mwiater/sieve/internal/util"
)

const mcqSystemPrompt = `You write multiple-choice quiz questions from news items.
Every question must be answerable from the item alone and have exactly one correct option.
Reply with JSON only, in the form:
{"questions":[{"question":"...","options":["...","...","...","..."],"answer":"A"}]}`

var mcqSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "options", "answer"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "options":  {"type": "array", "minItems": 2, "maxItems": 26, "items": {"type": "string", "minLength": 1}},
          "answer":   {"type": "string", "pattern": "^[A-Za-z]$"}
        }
      }
    }
  }
}`)

const defaultMaxChars = 4000

// ErrWriterUnavailable marks a failed call to the question-writing model.
var ErrWriterUnavailable = errors.New("writer model unavailable")

type mcqPayload struct {
	Questions []struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Answer   string   `json:"answer"`
	} `json:"questions"`
}

// LLMMultipleChoice asks a model to write multiple-choice questions for each
// item of a batch.
type LLMMultipleChoice struct {
	provider providers.ChatProvider
	cfg      *appconfig.Config
}

// NewLLMMultipleChoice binds the generator to a provider and configuration.
func NewLLMMultipleChoice(provider providers.ChatProvider, cfg *appconfig.Config) *LLMMultipleChoice {
	return &LLMMultipleChoice{provider: provider, cfg: cfg}
}

// ID implements Generator.
func (g *LLMMultipleChoice) ID() string { return "llm-mcq" }

// Generate implements Generator. Options: "host" and "model" select the
// writer model (default: the first test model), "per_item" the questions per
// item (default 1), "max_items" caps the items used and "max_chars" clips
// long item fields before they reach the model (default 4000). Items whose reply
// fails validation are logged and skipped. When the writer model failed for
// every attempted item, Generate returns ErrWriterUnavailable so the
// batch is retried instead of being recorded as empty.
func (g *LLMMultipleChoice) Generate(ctx context.Context, batch collectors.Batch, opts map[string]any) ([]prompt.Candidate, error) {
	if g.provider == nil || g.cfg == nil {
		return nil, fmt.Errorf("llm-mcq: no model provider configured")
	}
	host, model, err := g.writer(opts)
	if err != nil {
		return nil, err
	}
	perItem := util.IntOption(opts, "per_item", 1)
	if perItem < 1 {
		perItem = 1
	}

	maxChars := util.IntOption(opts, "max_chars", defaultMaxChars)

	var out []prompt.Candidate
	var writerErrs []error
	attempted := 0
	for _, item := range limitItems(batch, util.IntOption(opts, "max_items", 0)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempted++
		cands, err := g.generateItem(ctx, host, model, util.ClipStrings(item, maxChars), perItem)
		if err != nil {
			if errors.Is(err, ErrWriterUnavailable) {
				writerErrs = append(writerErrs, err)
			}
			logging.L().Warn("item skipped by generator",
				zap.String("generator", g.ID()),
				zap.String("title", itemString(item, "title")),
				zap.Error(err))
			continue
		}
		out = append(out, cands...)
	}
	if attempted > 0 && len(writerErrs) == attempted {
		return nil, fmt.Errorf("llm-mcq: %s/%s: %w", host.Name, model, errors.Join(writerErrs...))
	}
	return out, nil
}

func (g *LLMMultipleChoice) writer(opts map[string]any) (appconfig.Host, string, error) {
	hostName := util.StringOption(opts, "host", "")
	model := util.StringOption(opts, "model", "")
	if hostName == "" || model == "" {
		if len(g.cfg.TestModels) == 0 {
			return appconfig.Host{}, "", fmt.Errorf("llm-mcq: no host/model option and no test models configured")
		}
		if hostName == "" {
			hostName = g.cfg.TestModels[0].Host
		}
		if model == "" {
			model = g.cfg.TestModels[0].Model
		}
	}
	host, ok := g.cfg.HostByName(hostName)
	if !ok {
		return appconfig.Host{}, "", fmt.Errorf("llm-mcq: unknown host %q", hostName)
	}
	return host, model, nil
}

func (g *LLMMultipleChoice) generateItem(ctx context.Context, host appconfig.Host, model string, item collectors.Item, perItem int) ([]prompt.Candidate, error) {
	itemJSON, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return nil, err
	}
	userPrompt := fmt.Sprintf("Write %d multiple-choice question(s) with four options about this item:\n%s", perItem, itemJSON)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout())
	defer cancel()

	req := providers.UserPrompt(host, model, mcqSystemPrompt, userPrompt)
	req.JSONMode = true
	raw, _, err := providers.Complete(callCtx, g.provider, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriterUnavailable, err)
	}
	payload, err := parseMCQ(raw)
	if err != nil {
		return nil, err
	}

	link := itemString(item, "link")
	out := make([]prompt.Candidate, 0, len(payload.Questions))
	for i, q := range payload.Questions {
		if i >= perItem {
			break
		}
		answer := strings.ToUpper(q.Answer)
		if int(answer[0]-'A') >= len(q.Options) {
			return nil, fmt.Errorf("answer %s outside %d options", answer, len(q.Options))
		}
		c := prompt.Candidate{
			Type:           prompt.TypeMultipleChoice,
			Question:       strings.TrimSpace(q.Question),
			Options:        q.Options,
			ExpectedAnswer: answer,
			SourceLink:     link,
			Tags:           itemTags(item),
			Metadata: map[string]any{
				"generator": g.ID(),
				"writer":    host.Name + "/" + model,
				"title":     itemString(item, "title"),
			},
		}
		if err := c.EnsureID(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseMCQ(raw string) (mcqPayload, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```")
		if nl := strings.Index(body, "\n"); nl >= 0 {
			body = body[nl+1:]
		}
		body = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), "```"))
	}
	result, err := gojsonschema.Validate(mcqSchema, gojsonschema.NewStringLoader(body))
	if err != nil {
		return mcqPayload{}, fmt.Errorf("invalid json: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return mcqPayload{}, fmt.Errorf("reply does not match schema: %s", strings.Join(msgs, "; "))
	}
	var p mcqPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return mcqPayload{}, err
	}
	return p, nil
}

func itemTags(item collectors.Item) []string {
	cats, _ := item["categories"].([]any)
	tags := make([]string, 0, len(cats))
	for _, c := range cats {
		if s, ok := c.(string); ok && strings.TrimSpace(s) != "" {
			tags = append(tags, strings.ToLower(strings.TrimSpace(s)))
		}
	}
	return tags
}
