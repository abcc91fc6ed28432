// Package daemon hosts the scheduler as a long-running, single-instance
// process with an optional status endpoint.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/mwiater/sieve/internal/scheduler"
)

// ErrLocked is returned when another sieve process holds the data directory.
var ErrLocked = errors.New("another sieve instance holds the lock")

// AcquireLock takes the single-instance lock at path without blocking.
func AcquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return lock, nil
}

// Daemon runs the scheduler until a signal or context cancellation.
type Daemon struct {
	cfg      *appconfig.Config
	sched    *scheduler.Scheduler
	lockPath string
	signals  []os.Signal
}

// New prepares a daemon for the scheduler.
func New(cfg *appconfig.Config, sched *scheduler.Scheduler) *Daemon {
	return &Daemon{
		cfg:      cfg,
		sched:    sched,
		lockPath: cfg.LockPath(),
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Run holds the lock, serves status when configured and blocks in the
// scheduler loop. SIGINT and SIGTERM request a graceful shutdown; repeated
// signals are ignored while the in-flight pass completes.
func (d *Daemon) Run(ctx context.Context) error {
	log := logging.L()

	lock, err := AcquireLock(d.lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release daemon lock", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, d.signals...)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()
	go func() {
		for sig := range sigCh {
			log.Info("signal received", zap.String("signal", sig.String()))
			d.sched.Shutdown()
		}
	}()

	var srv *http.Server
	if addr := d.cfg.StatusAddr; addr != "" {
		srv = &http.Server{Addr: addr, Handler: NewStatusHandler(d.sched), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("status server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server failed", zap.Error(err))
			}
		}()
	}

	log.Info("sieve daemon started", zap.String("lock", d.lockPath))
	runErr := d.sched.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("status server shutdown failed", zap.Error(err))
		}
	}
	log.Info("sieve daemon stopped")
	return runErr
}
