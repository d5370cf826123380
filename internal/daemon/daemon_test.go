package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/logging"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/queue"
	"reelsmith/internal/stage"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Item) error { return nil }
func (noopStage) Execute(context.Context, *queue.Item) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health   { return stage.Healthy("noop") }

func noopStages() workflow.StageSet {
	return workflow.StageSet{
		Analyzer:  noopStage{},
		Clusterer: noopStage{},
		Planner:   noopStage{},
		Renderer:  noopStage{},
	}
}

func newTestDaemon(t *testing.T, cfg *config.Config, store *queue.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger, noopStages())
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" || !strings.HasSuffix(status.LockFilePath, "reelsmithd.lock") {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if len(status.Stages) != 4 {
		t.Fatalf("expected 4 stage health entries, got %d", len(status.Stages))
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { first.Stop() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	cfg2 := *cfg
	cfg2.Paths.APIBind = ""
	cfg2.Paths.IngestDir = ""
	second := newTestDaemon(t, &cfg2, store)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestDaemonAddVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)

	ctx := context.Background()
	source := filepath.Join(testsupport.BaseDir(cfg), "cam1__gala.mp4")
	testsupport.WriteFile(t, source, 2048)

	item, err := d.AddVideo(ctx, source)
	if err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending item, got %s", item.Status)
	}
	if item.CameraID != "cam1" {
		t.Fatalf("expected camera cam1, got %q", item.CameraID)
	}

	if _, err := d.AddVideo(ctx, filepath.Join(testsupport.BaseDir(cfg), "missing.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}

	notes := filepath.Join(testsupport.BaseDir(cfg), "notes.txt")
	testsupport.WriteFile(t, notes, 16)
	if _, err := d.AddVideo(ctx, notes); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestDaemonAPIEndpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	addr := d.APIAddress()
	if addr == "" {
		t.Fatal("expected api server address")
	}

	source := filepath.Join(testsupport.BaseDir(cfg), "cam2__party.mkv")
	testsupport.WriteFile(t, source, 1024)
	if _, err := d.AddVideo(ctx, source); err != nil {
		t.Fatalf("AddVideo failed: %v", err)
	}

	body := mustGet(t, fmt.Sprintf("http://%s/healthz", addr), http.StatusOK)
	var health struct {
		Ready  bool `json:"ready"`
		Stages []struct {
			Name  string `json:"name"`
			Ready bool   `json:"ready"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if !health.Ready || len(health.Stages) != 4 {
		t.Fatalf("unexpected healthz payload: %s", body)
	}

	body = mustGet(t, fmt.Sprintf("http://%s/api/status", addr), http.StatusOK)
	var status struct {
		Running bool `json:"running"`
		Queue   struct {
			Total int `json:"total"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.Queue.Total == 0 {
		t.Fatal("expected queued item in status counts")
	}

	body = mustGet(t, fmt.Sprintf("http://%s/api/queue?status=pending,completed", addr), http.StatusOK)
	var list struct {
		Items []struct {
			SourcePath string `json:"source_path"`
			CameraID   string `json:"camera_id"`
			Status     string `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].CameraID != "cam2" {
		t.Fatalf("unexpected queue payload: %s", body)
	}

	body = mustGet(t, fmt.Sprintf("http://%s/metrics", addr), http.StatusOK)
	if !strings.Contains(string(body), "reelsmith_") {
		t.Fatal("expected reelsmith metrics in exposition output")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/queue?status=bogus", addr))
	if err != nil {
		t.Fatalf("queue request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
}

func TestDaemonIngestWatcherEnqueues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)
	t.Cleanup(func() { d.Stop() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	source := filepath.Join(cfg.Paths.IngestDir, "cam3__arrival.mp4")
	testsupport.WriteFile(t, source, 4096)

	deadline := time.Now().Add(10 * time.Second)
	for {
		items, err := d.ListQueue(ctx)
		if err != nil {
			t.Fatalf("ListQueue failed: %v", err)
		}
		if len(items) == 1 {
			if items[0].SourcePath != source {
				t.Fatalf("unexpected source %q", items[0].SourcePath)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ingest watcher to enqueue file")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestDaemonUsesPipelineStages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger, pipeline.Stages(cfg, logger))
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	for _, h := range status.Stages {
		if !h.Ready {
			t.Fatalf("stage %s not ready: %s", h.Name, h.Detail)
		}
	}
}

func mustGet(t *testing.T, url string, wantStatus int) []byte {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s returned %d, want %d: %s", url, resp.StatusCode, wantStatus, body)
	}
	return body
}
