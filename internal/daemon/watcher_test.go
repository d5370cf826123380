package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/testsupport"
)

func TestWatcherWaitsForStableSize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	w := newIngestWatcher(cfg, store, logging.NewNop())
	if w == nil {
		t.Fatal("expected watcher for configured ingest dir")
	}
	w.stableInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer w.stop()

	// Simulate a slow copy: grow the file across several stability windows.
	source := filepath.Join(cfg.Paths.IngestDir, "cam1__toast.mp4")
	f, err := os.Create(source)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	chunk := make([]byte, 1024)
	for i := 0; i < 4; i++ {
		if _, err := f.Write(chunk); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
		_ = f.Sync()
		time.Sleep(60 * time.Millisecond)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close source: %v", err)
	}

	item := waitForItem(t, store, source)
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending item, got %s", item.Status)
	}
	info, err := os.Stat(source)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	if info.Size() != 4096 {
		t.Fatalf("expected complete 4096-byte file, got %d", info.Size())
	}
}

func TestWatcherScansExistingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.IngestDir, "cam2__speech.mkv")
	testsupport.WriteFile(t, source, 2048)
	ignored := filepath.Join(cfg.Paths.IngestDir, "transfer.mp4.part")
	testsupport.WriteFile(t, ignored, 128)

	w := newIngestWatcher(cfg, store, logging.NewNop())
	w.stableInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer w.stop()

	waitForItem(t, store, source)

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the video file queued, got %d items", len(items))
	}
}

func TestWatcherDisabledWithoutIngestDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.IngestDir = ""
	store := testsupport.MustOpenStore(t, cfg)

	if w := newIngestWatcher(cfg, store, logging.NewNop()); w != nil {
		t.Fatal("expected nil watcher when ingest dir is unset")
	}
}

func waitForItem(t *testing.T, store *queue.Store, source string) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		item, err := store.FindBySource(context.Background(), source)
		if err != nil {
			t.Fatalf("FindBySource failed: %v", err)
		}
		if item != nil {
			return item
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s to be queued", source)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
