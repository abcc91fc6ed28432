// Package evaluator runs every candidate prompt against a set of test models
// and scores the answers.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/prompt"
	"github.com/mwiater/sieve/internal/providers"
	"github.com/mwiater/sieve/internal/scoring"
)

const (
	multipleChoiceSystemPrompt = "You are taking a multiple-choice test. Read the question and the lettered options, then reply with the letter of the single best option. Reply with the letter only."
	openSystemPrompt           = "Answer the question as briefly and precisely as possible. Do not explain your answer."
)

// Evaluator fans prompts out over a bounded pool. Models for one prompt are
// queried one after another in configured order.
type Evaluator struct {
	provider providers.ChatProvider
	hosts    func(string) (appconfig.Host, bool)
	judge    scoring.Scorer
	limit    int
	timeout  time.Duration
	now      func() time.Time
}

// New builds an Evaluator from the application configuration. judge scores
// open-ended prompts and may be nil.
func New(provider providers.ChatProvider, cfg *appconfig.Config, judge scoring.Scorer) *Evaluator {
	return &Evaluator{
		provider: provider,
		hosts:    cfg.HostByName,
		judge:    judge,
		limit:    cfg.WorkerLimit(),
		timeout:  cfg.RequestTimeout(),
		now:      time.Now,
	}
}

// Evaluate returns the surviving evaluations keyed by prompt ID. Every prompt
// is present in the result; failed (prompt, model) pairs are logged and left
// out rather than scored as zero.
func (e *Evaluator) Evaluate(ctx context.Context, prompts []prompt.Candidate, models []appconfig.ModelRef) map[string][]prompt.Evaluation {
	results := make([][]prompt.Evaluation, len(prompts))

	var g errgroup.Group
	g.SetLimit(e.limit)
	for i := range prompts {
		i := i
		g.Go(func() error {
			results[i] = e.evaluatePrompt(ctx, prompts[i], models)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]prompt.Evaluation, len(prompts))
	for i, p := range prompts {
		out[p.ID] = results[i]
	}
	return out
}

func (e *Evaluator) evaluatePrompt(ctx context.Context, p prompt.Candidate, models []appconfig.ModelRef) []prompt.Evaluation {
	evals := make([]prompt.Evaluation, 0, len(models))
	for _, ref := range models {
		if ctx.Err() != nil {
			break
		}
		eval, err := e.evaluateOne(ctx, p, ref)
		if err != nil {
			logging.L().Warn("evaluation omitted",
				zap.String("prompt", p.ID),
				zap.String("model", ref.String()),
				zap.Error(err))
			continue
		}
		evals = append(evals, eval)
	}
	return evals
}

var errUnscorable = errors.New("response could not be scored")

func (e *Evaluator) evaluateOne(ctx context.Context, p prompt.Candidate, ref appconfig.ModelRef) (prompt.Evaluation, error) {
	host, ok := e.hosts(ref.Host)
	if !ok {
		return prompt.Evaluation{}, fmt.Errorf("unknown host %q", ref.Host)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := e.now()
	req := providers.UserPrompt(host, ref.Model, systemPromptFor(p), p.Render())
	response, _, err := providers.Complete(callCtx, e.provider, req)
	duration := e.now().Sub(started)
	if err != nil {
		return prompt.Evaluation{}, fmt.Errorf("query: %w", err)
	}

	// The judge may be a model call too and gets a full timeout of its own.
	scoreCtx, cancelScore := context.WithTimeout(ctx, e.timeout)
	defer cancelScore()
	score, err := scoring.ForType(p.Type, e.judge).ScoreOne(scoreCtx, scoring.Input{Prompt: p, Response: response})
	if err != nil {
		return prompt.Evaluation{}, fmt.Errorf("score: %w", err)
	}
	if score == nil {
		return prompt.Evaluation{}, errUnscorable
	}

	return prompt.Evaluation{
		PromptID:        p.ID,
		Host:            host.Name,
		Model:           ref.Model,
		Response:        response,
		Score:           score.Value,
		Correct:         score.Correct(),
		ExtractedAnswer: score.ExtractedAnswer,
		ScoreReason:     score.Reason,
		Duration:        duration,
		EvaluatedAt:     started.UTC(),
	}, nil
}

func systemPromptFor(p prompt.Candidate) string {
	if p.IsMultipleChoice() {
		return multipleChoiceSystemPrompt
	}
	return openSystemPrompt
}
