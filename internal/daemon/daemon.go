package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"narrate/internal/config"
	"narrate/internal/logging"
	"narrate/internal/pipeline"
	"narrate/internal/queue"
)

// Daemon coordinates the background services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	pipeline *pipeline.Manager

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, manager *pipeline.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, logger, and pipeline manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "narrated.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: manager,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers orphaned jobs, and launches the
// pipeline and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another narrate daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Jobs left processing by a crashed daemon go back to the queue.
	reset, err := d.store.ResetStuckProcessing(runCtx)
	if err != nil {
		d.releaseStart()
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Info("requeued jobs orphaned by previous run", logging.Int64("count", reset))
	}

	if err := d.pipeline.Start(runCtx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.pipeline.Stop()
		d.releaseStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("narrate daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
}

// Stop halts background processing, marks interrupted jobs failed, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pipeline.Stop()
	d.api.stop()

	failed, err := d.store.FailProcessing(context.Background(), queue.ShutdownStopReason)
	if err != nil {
		d.logger.Warn("failed to mark interrupted jobs", logging.Error(err))
	} else if failed > 0 {
		d.logger.Info("marked interrupted jobs failed", logging.Int64("count", failed))
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("narrate daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr reports the API listen address, empty until Start succeeds.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// ListJobs returns queue records filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return d.store.List(ctx, statuses...)
}

// RetryFailed re-queues failed jobs, optionally restricted to ids.
func (d *Daemon) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// ClearCompleted removes completed job records.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes failed job records.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// Health returns aggregate queue counts.
func (d *Daemon) Health(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}
