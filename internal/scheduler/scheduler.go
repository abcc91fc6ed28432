// Package scheduler runs a pass over every source on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/pipeline"
)

// Runner executes one source cycle.
type Runner interface {
	RunCycle(ctx context.Context, src appconfig.Source) pipeline.CycleReport
}

// State is the scheduler's coarse state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// PassSummary records one pass over all sources.
type PassSummary struct {
	ID         string                 `json:"id"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt time.Time              `json:"finishedAt"`
	Reports    []pipeline.CycleReport `json:"reports"`
}

// Failures counts the failed cycles of the pass.
func (p PassSummary) Failures() int {
	n := 0
	for _, r := range p.Reports {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Status is a point-in-time snapshot.
type Status struct {
	State         State        `json:"state"`
	Passes        int          `json:"passes"`
	Interval      string       `json:"interval"`
	LastCompleted time.Time    `json:"lastCompleted,omitempty"`
	NextPassAt    time.Time    `json:"nextPassAt,omitempty"`
	ShuttingDown  bool         `json:"shuttingDown"`
	LastPass      *PassSummary `json:"lastPass,omitempty"`
}

// Scheduler owns its loop state; nothing is global.
type Scheduler struct {
	mu            sync.Mutex
	running       bool
	lastCompleted time.Time
	passes        int
	lastPass      *PassSummary

	interval     time.Duration
	pollInterval time.Duration
	sources      []appconfig.Source
	runner       Runner
	now          func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a scheduler for sources, run in the given order.
func New(runner Runner, sources []appconfig.Source, interval, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Scheduler{
		interval:     interval,
		pollInterval: pollInterval,
		sources:      append([]appconfig.Source(nil), sources...),
		runner:       runner,
		now:          time.Now,
		stop:         make(chan struct{}),
	}
}

// Run starts a pass immediately, then polls and starts another pass whenever
// the interval has elapsed since the last one completed. It returns after
// Shutdown or when ctx is done; a pass in flight always completes first.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logging.L()
	log.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("sources", len(s.sources)))

	if !s.stopping() {
		s.RunPass(ctx)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped", zap.Error(ctx.Err()))
			return nil
		case <-s.stop:
			log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if s.stopping() || !s.due() {
				continue
			}
			s.RunPass(ctx)
		}
	}
}

// RunPass runs every source once, sequentially. Cycle failures are recorded
// and never stop the pass.
func (s *Scheduler) RunPass(ctx context.Context) PassSummary {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	pass := PassSummary{ID: uuid.NewString(), StartedAt: s.now().UTC()}
	log := logging.L().With(zap.String("pass", pass.ID))
	log.Info("pass started", zap.Int("sources", len(s.sources)))

	for _, src := range s.sources {
		report := s.runner.RunCycle(ctx, src)
		pass.Reports = append(pass.Reports, report)
		if report.Failed() {
			log.Warn("source cycle failed", zap.String("source", src.Name), zap.String("error", report.Error))
		}
	}
	pass.FinishedAt = s.now().UTC()

	s.mu.Lock()
	s.running = false
	s.lastCompleted = pass.FinishedAt
	s.passes++
	summary := pass
	s.lastPass = &summary
	s.mu.Unlock()

	log.Info("pass finished",
		zap.Int("cycles", len(pass.Reports)),
		zap.Int("failures", pass.Failures()),
		zap.Duration("elapsed", pass.FinishedAt.Sub(pass.StartedAt)))
	return pass
}

// Shutdown asks the loop to exit after any in-flight pass. Repeated calls
// are no-ops.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		logging.L().Info("scheduler shutdown requested")
		close(s.stop)
	})
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:         StateIdle,
		Passes:        s.passes,
		Interval:      s.interval.String(),
		LastCompleted: s.lastCompleted,
		ShuttingDown:  s.stopping(),
	}
	if s.running {
		st.State = StateRunning
	}
	if !s.lastCompleted.IsZero() {
		st.NextPassAt = s.lastCompleted.Add(s.interval)
	}
	if s.lastPass != nil {
		cp := *s.lastPass
		st.LastPass = &cp
	}
	return st
}

func (s *Scheduler) due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.running && s.now().Sub(s.lastCompleted) >= s.interval
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
