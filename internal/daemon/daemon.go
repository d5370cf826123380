package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/queue"
	"reelsmith/internal/stage"
	"reelsmith/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	watcher  *ingestWatcher
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Queue        queue.HealthSummary
	Stages       []stage.Health
	QueueDBPath  string
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "reelsmithd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.watcher = newIngestWatcher(cfg, store, d.logger)
	d.api = newAPIServer(cfg, d, d.logger)
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, the ingest
// watcher, and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelsmith daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.start(runCtx); err != nil {
			d.workflow.Stop()
			d.releaseLock()
			cancel()
			d.cancel = nil
			return fmt.Errorf("start ingest watcher: %w", err)
		}
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			if d.watcher != nil {
				d.watcher.stop()
			}
			d.workflow.Stop()
			d.releaseLock()
			cancel()
			d.cancel = nil
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("reelsmith daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.watcher != nil {
		d.watcher.stop()
	}
	d.workflow.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("reelsmith daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// AddVideo enqueues a source video for processing.
func (d *Daemon) AddVideo(ctx context.Context, sourcePath string) (*queue.Item, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	if !media.IsVideoPath(absPath) {
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(absPath))
	}
	item, err := d.store.NewVideo(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("enqueue video: %w", err)
	}
	d.logger.Info("video queued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("source", absPath))
	return item, nil
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	return d.store.List(ctx, statuses...)
}

// ClearQueue removes queue items, optionally limited to the given statuses.
func (d *Daemon) ClearQueue(ctx context.Context, statuses ...queue.Status) (int64, error) {
	return d.store.Clear(ctx, statuses...)
}

// RetryFailed resets failed and review items (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// APIAddress returns the bound API address, or empty when the server is off.
func (d *Daemon) APIAddress() string {
	if d.api == nil {
		return ""
	}
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("queue health unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		Queue:        summary,
		Stages:       d.workflow.Health(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.APIAddress(),
	}
}
