package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/workflow"
)

type stubHandler struct {
	name     string
	executed atomic.Int64
	execErr  error
	onExec   func(*queue.Item)
}

func (h *stubHandler) Prepare(_ context.Context, item *queue.Item) error { return nil }

func (h *stubHandler) Execute(_ context.Context, item *queue.Item) error {
	h.executed.Add(1)
	if h.execErr != nil {
		return h.execErr
	}
	if h.onExec != nil {
		h.onExec(item)
	}
	return nil
}

func (h *stubHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(h.name) }

func stubStages() (workflow.StageSet, *stubHandler, *stubHandler, *stubHandler, *stubHandler) {
	analyzer := &stubHandler{name: "analyzer"}
	clusterer := &stubHandler{name: "clusterer"}
	planner := &stubHandler{name: "planner"}
	renderer := &stubHandler{name: "renderer"}
	return workflow.StageSet{
		Analyzer:  analyzer,
		Clusterer: clusterer,
		Planner:   planner,
		Renderer:  renderer,
	}, analyzer, clusterer, planner, renderer
}

func fastConfig(t *testing.T) *config.Config {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	return cfg
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		time.Sleep(20 * time.Millisecond)
	}
	item, _ := store.GetByID(context.Background(), id)
	t.Fatalf("item %d never reached %s, last status %s", id, want, item.Status)
	return nil
}

func TestManagerWalksItemThroughAllStages(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	set, analyzer, clusterer, planner, renderer := stubStages()

	m := workflow.NewManager(cfg, store, logging.NewNop(), set)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	item := testsupport.NewVideo(t, store, "/media/cam0__gala.mp4")
	done := waitForStatus(t, store, item.ID, queue.StatusCompleted)

	if done.ProgressPercent != 100 {
		t.Fatalf("completed item progress = %g", done.ProgressPercent)
	}
	for _, h := range []*stubHandler{analyzer, clusterer, planner, renderer} {
		if h.executed.Load() != 1 {
			t.Fatalf("stage %s executed %d times", h.name, h.executed.Load())
		}
	}
}

func TestManagerMarksItemFailedOnStageError(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	set, _, clusterer, planner, _ := stubStages()
	clusterer.execErr = errors.New("embedding backend offline")

	m := workflow.NewManager(cfg, store, logging.NewNop(), set)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	item := testsupport.NewVideo(t, store, "/media/gala.mp4")
	failed := waitForStatus(t, store, item.ID, queue.StatusFailed)

	if failed.ErrorMessage == "" {
		t.Fatal("failed item has no error message")
	}
	if planner.executed.Load() != 0 {
		t.Fatal("planner ran after an upstream failure")
	}
	if m.LastError() == nil {
		t.Fatal("manager did not record the failure")
	}
}

func TestManagerParksFatalErrorsForReview(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	set, _, _, planner, renderer := stubStages()
	planner.execErr = services.Wrap(services.ErrLogicInvariant, "planner", "check duration", "plan runs 200.0s, ceiling 90.0s", nil)

	m := workflow.NewManager(cfg, store, logging.NewNop(), set)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	item := testsupport.NewVideo(t, store, "/media/gala.mp4")
	parked := waitForStatus(t, store, item.ID, queue.StatusReview)

	if !parked.NeedsReview || parked.ReviewReason == "" {
		t.Fatalf("review item missing review fields: %+v", parked)
	}
	if renderer.executed.Load() != 0 {
		t.Fatal("renderer ran after a fatal planner error")
	}
}

func TestManagerLeavesReviewItemsParked(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	set, _, _, planner, renderer := stubStages()
	planner.onExec = func(item *queue.Item) { item.SetReview("plan shorter than target") }

	m := workflow.NewManager(cfg, store, logging.NewNop(), set)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	item := testsupport.NewVideo(t, store, "/media/gala.mp4")
	parked := waitForStatus(t, store, item.ID, queue.StatusReview)

	if !parked.NeedsReview || parked.ReviewReason == "" {
		t.Fatalf("review state incomplete: %+v", parked)
	}
	if renderer.executed.Load() != 0 {
		t.Fatal("renderer ran on a parked item")
	}
}

func TestManagerResetsStaleProcessingOnStart(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewVideo(t, store, "/media/gala.mp4")
	item.Status = queue.StatusAnalyzing
	if err := store.Update(ctx, item); err != nil {
		t.Fatal(err)
	}

	set, _, _, _, _ := stubStages()
	m := workflow.NewManager(cfg, store, logging.NewNop(), set)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	waitForStatus(t, store, item.ID, queue.StatusCompleted)
}

func TestManagerHealthReportsAllStages(t *testing.T) {
	cfg := fastConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	set, _, _, _, _ := stubStages()

	m := workflow.NewManager(cfg, store, logging.NewNop(), set)
	health := m.Health(context.Background())
	if len(health) != 4 {
		t.Fatalf("expected 4 stage health records, got %d", len(health))
	}
	for _, h := range health {
		if !h.Ready {
			t.Fatalf("stage %s not ready", h.Name)
		}
	}
}
