package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/queue"
)

const defaultStableInterval = 500 * time.Millisecond

// ingestWatcher monitors the ingest directory and enqueues video files once
// their size has stopped changing. Files dropped by slow copies or network
// transfers trigger a create event long before they are complete, so each
// candidate is polled until two consecutive size samples agree.
type ingestWatcher struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	stableInterval time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]struct{}
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func newIngestWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *ingestWatcher {
	if strings.TrimSpace(cfg.Paths.IngestDir) == "" {
		return nil
	}
	return &ingestWatcher{
		cfg:            cfg,
		store:          store,
		logger:         logging.NewComponentLogger(logger, "ingest-watcher"),
		stableInterval: defaultStableInterval,
		pending:        make(map[string]struct{}),
	}
}

func (w *ingestWatcher) start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.cfg.Paths.IngestDir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", w.cfg.Paths.IngestDir, err)
	}
	w.watcher = fw

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.scanExisting(runCtx)

	w.wg.Add(1)
	go w.eventLoop(runCtx)

	w.logger.Info("ingest watcher started", logging.String("directory", w.cfg.Paths.IngestDir))
	return nil
}

func (w *ingestWatcher) stop() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.wg.Wait()
}

// scanExisting enqueues files already present in the ingest directory, so
// videos dropped while the daemon was down are not lost.
func (w *ingestWatcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Paths.IngestDir)
	if err != nil {
		w.logger.Warn("ingest scan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !media.IsVideoPath(entry.Name()) {
			continue
		}
		w.track(ctx, filepath.Join(w.cfg.Paths.IngestDir, entry.Name()))
	}
}

func (w *ingestWatcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ingest watch error", logging.Error(err))
		}
	}
}

func (w *ingestWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !media.IsVideoPath(event.Name) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}
	w.track(ctx, event.Name)
}

// track starts a stability poller for the path unless one is already running.
func (w *ingestWatcher) track(ctx context.Context, path string) {
	w.mu.Lock()
	if _, busy := w.pending[path]; busy {
		w.mu.Unlock()
		return
	}
	w.pending[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()
		w.enqueueWhenStable(ctx, path)
	}()
}

func (w *ingestWatcher) enqueueWhenStable(ctx context.Context, path string) {
	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.stableInterval):
		}
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.Size() > 0 && info.Size() == lastSize {
			break
		}
		lastSize = info.Size()
	}

	item, err := w.store.NewVideo(ctx, path)
	if err != nil {
		w.logger.Error("failed to enqueue ingest file",
			logging.String("source", path),
			logging.Error(err))
		return
	}
	w.logger.Info("ingest file queued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("source", path),
		logging.Int64("size_bytes", lastSize))
}

