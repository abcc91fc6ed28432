package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/pipeline"
)

type recordingRunner struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]bool
	block   chan struct{}
	started chan struct{}
}

func (r *recordingRunner) RunCycle(ctx context.Context, src appconfig.Source) pipeline.CycleReport {
	r.mu.Lock()
	r.calls = append(r.calls, src.Name)
	r.mu.Unlock()
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}
	if r.fail[src.Name] {
		return pipeline.CycleReport{Source: src.Name, Outcome: pipeline.OutcomeFailed, Error: "boom"}
	}
	return pipeline.CycleReport{Source: src.Name, Outcome: pipeline.OutcomeUploaded}
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func sources(names ...string) []appconfig.Source {
	out := make([]appconfig.Source, 0, len(names))
	for _, n := range names {
		out = append(out, appconfig.Source{Name: n})
	}
	return out
}

func TestRunPassKeepsOrderAndSurvivesFailures(t *testing.T) {
	r := &recordingRunner{fail: map[string]bool{"b": true}}
	s := New(r, sources("a", "b", "c"), time.Hour, time.Millisecond)

	pass := s.RunPass(context.Background())
	if len(pass.Reports) != 3 || pass.Failures() != 1 {
		t.Fatalf("unexpected pass %+v", pass)
	}
	if r.calls[0] != "a" || r.calls[1] != "b" || r.calls[2] != "c" {
		t.Fatalf("sources ran out of order: %v", r.calls)
	}
	if pass.ID == "" {
		t.Fatal("expected a pass id")
	}

	st := s.Status()
	if st.Passes != 1 || st.State != StateIdle || st.LastPass == nil || st.NextPassAt.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestRunStartsImmediatelyAndStopsOnShutdown(t *testing.T) {
	r := &recordingRunner{}
	s := New(r, sources("a"), time.Hour, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.count() != 1 {
		t.Fatalf("expected an immediate first pass, got %d calls", r.count())
	}

	s.Shutdown()
	s.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after Shutdown")
	}
	if r.count() != 1 {
		t.Fatalf("interval not elapsed; expected a single pass, got %d", r.count())
	}
	if !s.Status().ShuttingDown {
		t.Fatal("expected status to report shutdown")
	}
}

func TestRunRepeatsAfterInterval(t *testing.T) {
	r := &recordingRunner{}
	s := New(r, sources("a"), 10*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for r.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if r.count() < 3 {
		t.Fatalf("expected repeated passes, got %d", r.count())
	}
}

func TestShutdownLetsInFlightPassFinish(t *testing.T) {
	r := &recordingRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(r, sources("a", "b"), time.Hour, time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Run(context.Background())
		close(done)
	}()

	<-r.started
	if s.Status().State != StateRunning {
		t.Fatal("expected running state during a pass")
	}
	s.Shutdown()

	select {
	case <-done:
		t.Fatal("Run returned while a pass was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(r.block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after the pass")
	}
	if r.count() != 2 {
		t.Fatalf("expected the in-flight pass to cover both sources, got %v", r.calls)
	}
}
