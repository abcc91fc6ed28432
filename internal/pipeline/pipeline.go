// Package pipeline runs one source through collect, dedup, generate, evaluate,
// gate and upload.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/artifacts"
	"github.com/mwiater/sieve/internal/collectors"
	"github.com/mwiater/sieve/internal/consensus"
	"github.com/mwiater/sieve/internal/dedup"
	"github.com/mwiater/sieve/internal/generators"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/prompt"
	"github.com/mwiater/sieve/internal/providers"
	"github.com/mwiater/sieve/internal/registry"
)

// Evaluator scores prompts against the test models.
type Evaluator interface {
	Evaluate(ctx context.Context, prompts []prompt.Candidate, models []appconfig.ModelRef) map[string][]prompt.Evaluation
}

// Deps are the collaborators of an Orchestrator. Collectors and Generators
// override the registered implementations by name.
type Deps struct {
	Gate       *dedup.Gate
	Artifacts  *artifacts.Store
	Evaluator  Evaluator
	Uploader   registry.Uploader
	Provider   providers.ChatProvider
	Collectors map[string]collectors.Collector
	Generators map[string]generators.Generator
}

type sourcePipeline struct {
	collector   collectors.Collector
	generator   generators.Generator
	transformer collectors.Transformer
}

// Orchestrator runs cycles. It is safe to run cycles for different sources
// concurrently.
type Orchestrator struct {
	cfg       *appconfig.Config
	gate      *dedup.Gate
	artifacts *artifacts.Store
	evaluator Evaluator
	uploader  registry.Uploader
	sources   map[string]sourcePipeline
	now       func() time.Time
}

// New resolves the collector, generator and transforms of every active
// source. Unknown names are configuration errors.
func New(cfg *appconfig.Config, deps Deps) (*Orchestrator, error) {
	if deps.Gate == nil || deps.Artifacts == nil || deps.Uploader == nil {
		return nil, fmt.Errorf("pipeline: gate, artifacts and uploader are required")
	}
	o := &Orchestrator{
		cfg:       cfg,
		gate:      deps.Gate,
		artifacts: deps.Artifacts,
		evaluator: deps.Evaluator,
		uploader:  deps.Uploader,
		sources:   make(map[string]sourcePipeline),
		now:       time.Now,
	}
	for _, src := range cfg.ActiveSources() {
		sp, err := resolve(cfg, deps, src)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src.Name, err)
		}
		o.sources[src.Name] = sp
	}
	return o, nil
}

func resolve(cfg *appconfig.Config, deps Deps, src appconfig.Source) (sourcePipeline, error) {
	var sp sourcePipeline
	var err error

	if c, ok := deps.Collectors[src.Collector]; ok {
		sp.collector = c
	} else if sp.collector, err = collectors.New(src.Collector, nil); err != nil {
		return sp, err
	}
	if g, ok := deps.Generators[src.Generator]; ok {
		sp.generator = g
	} else if sp.generator, err = generators.New(src.Generator, generators.Deps{Provider: deps.Provider, Config: cfg}); err != nil {
		return sp, err
	}
	if sp.transformer, err = collectors.TransformerFor(src.Transforms); err != nil {
		return sp, err
	}
	return sp, nil
}

// RunCycle processes one source. It never returns an error and never
// panics; the report carries the outcome.
func (o *Orchestrator) RunCycle(ctx context.Context, src appconfig.Source) (report CycleReport) {
	report = CycleReport{Source: src.Name, StartedAt: o.now().UTC()}
	log := logging.L().With(zap.String("source", src.Name))

	defer func() {
		report.Duration = o.now().Sub(report.StartedAt)
		if r := recover(); r != nil {
			log.Error("cycle panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			report.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	sp, ok := o.sources[src.Name]
	if !ok {
		err := fmt.Errorf("source %q is not configured", src.Name)
		log.Error("cycle failed", zap.Error(err))
		return report.fail(err)
	}

	cycleCtx := ctx
	if timeout := o.cfg.CycleTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	batch, err := sp.collector.Collect(cycleCtx, src.Locator, src.CollectorOptions)
	if err != nil {
		log.Error("collect failed", zap.Error(err))
		return report.fail(fmt.Errorf("collect: %w", err))
	}
	batch = sp.transformer.Transform(batch)
	report.Items = len(batch)

	collectorID, generatorID := sp.collector.ID(), sp.generator.ID()
	res, err := o.gate.CheckAndReserve(cycleCtx, collectorID, generatorID, batch)
	if err != nil {
		log.Error("dedup check failed", zap.Error(err))
		return report.fail(fmt.Errorf("dedup: %w", err))
	}
	defer res.Release()
	report.Fingerprint = res.Fingerprint
	log = log.With(zap.String("fingerprint", res.Fingerprint))

	if !res.IsNew {
		log.Info("batch already processed", zap.String("marker", res.Marker))
		report.Outcome = OutcomeDuplicate
		return report
	}

	prompts, err := sp.generator.Generate(cycleCtx, batch, src.GeneratorOptions)
	if err != nil {
		log.Error("generate failed", zap.Error(err))
		return report.fail(fmt.Errorf("generate: %w", err))
	}
	report.Generated = len(prompts)

	// The marker is only written once the raw batch is on disk.
	if _, err := o.artifacts.SaveCollected(res.Fingerprint, collectorID, generatorID, batch); err != nil {
		log.Error("persist batch failed", zap.Error(err))
		return report.fail(fmt.Errorf("persist batch: %w", err))
	}
	if err := res.Commit(cycleCtx); err != nil {
		log.Error("commit marker failed", zap.Error(err))
		return report.fail(fmt.Errorf("commit marker: %w", err))
	}

	if len(prompts) == 0 {
		log.Info("generator produced no prompts")
		report.Outcome = OutcomeNoPrompts
		return report
	}
	if err := assignIDs(prompts); err != nil {
		return report.fail(err)
	}

	evaluating := o.cfg.Testing() && len(o.cfg.TestModels) > 0 && o.evaluator != nil
	var evals map[string][]prompt.Evaluation
	if evaluating {
		evals = o.evaluator.Evaluate(cycleCtx, prompts, o.cfg.TestModels)
	}

	records := make([]prompt.Record, 0, len(prompts))
	var kept []prompt.Candidate
	var rejected []prompt.Record
	var scores []prompt.Evaluation
	for _, p := range prompts {
		pe := evals[p.ID]
		report.Evaluations += len(pe)

		var d prompt.Decision
		switch {
		case evaluating && len(pe) == 0 && o.expectsScore(p):
			// Every model failed for this prompt; it was never tested.
			d = prompt.Decision{Keep: false, Reason: ReasonUnevaluated}
		case evaluating:
			p, d = consensus.Apply(p, pe)
		default:
			d = prompt.Decision{Keep: true, Tags: []string{consensus.TagProvenance}}
			p.Tags = append([]string(nil), p.Tags...)
			p.AddTags(d.Tags...)
		}
		rec := prompt.Record{Prompt: p, Evaluations: pe, Decision: &d}
		records = append(records, rec)
		if d.Keep {
			kept = append(kept, p)
			scores = append(scores, pe...)
		} else {
			rejected = append(rejected, rec)
		}
	}
	report.Kept, report.Rejected = len(kept), len(rejected)

	if _, err := o.artifacts.SavePrompts(res.Fingerprint, collectorID, generatorID, records); err != nil {
		log.Warn("persist prompts failed", zap.Error(err))
	}
	if len(rejected) > 0 {
		if _, err := o.artifacts.SaveRejected(res.Fingerprint, collectorID, generatorID, rejected); err != nil {
			log.Warn("persist rejected prompts failed", zap.Error(err))
		}
	}

	if len(kept) == 0 {
		log.Info("no prompts survived the quality gate", zap.Int("rejected", len(rejected)))
		report.Outcome = OutcomeNoSurvivors
		return report
	}

	// Uploads run under their own deadline so shutdown does not cut them off.
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.UploadTimeout())
	defer cancel()

	n, err := o.uploader.UploadPrompts(uploadCtx, kept, src.BenchmarkID)
	if err != nil {
		log.Error("prompt upload failed", zap.Error(err))
		return report.fail(fmt.Errorf("upload prompts: %w", err))
	}
	report.PromptsUploaded = n
	report.Outcome = OutcomeUploaded

	if evaluating && len(scores) > 0 {
		sn, err := o.uploader.UploadScores(uploadCtx, scores, src.BenchmarkID)
		if err != nil {
			log.Warn("score upload failed", zap.Error(err))
			report.ScoreError = err.Error()
		} else {
			report.ScoresUploaded = sn
		}
	}

	log.Info("cycle complete",
		zap.Int("generated", report.Generated),
		zap.Int("kept", report.Kept),
		zap.Int("rejected", report.Rejected),
		zap.Int("uploaded", report.PromptsUploaded),
		zap.Int("scores", report.ScoresUploaded))
	return report
}

// expectsScore reports whether a test model could have scored p: multiple
// choice always, open prompts only with a judge.
func (o *Orchestrator) expectsScore(p prompt.Candidate) bool {
	return p.IsMultipleChoice() || !o.cfg.Judge.IsZero()
}

// assignIDs fills missing IDs and makes duplicates unique within the cycle.
func assignIDs(prompts []prompt.Candidate) error {
	seen := make(map[string]int, len(prompts))
	for i := range prompts {
		if err := prompts[i].EnsureID(); err != nil {
			return err
		}
		id := prompts[i].ID
		if n, dup := seen[id]; dup {
			seen[id] = n + 1
			prompts[i].ID = id + "-" + strconv.Itoa(n+1)
			continue
		}
		seen[id] = 0
	}
	return nil
}
