package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"reelsmith/internal/cluster"
	"reelsmith/internal/config"
	"reelsmith/internal/detect"
	"reelsmith/internal/logging"
	"reelsmith/internal/metrics"
	"reelsmith/internal/queue"
	"reelsmith/internal/score"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/track"
)

func writeStub(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func analyzerConfig(t *testing.T, frames int) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	probe := `cat <<'EOF'
{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"avg_frame_rate":"30/1"}],"format":{"duration":"30.0"}}
EOF`
	cfg.Render.FFprobeBinary = writeStub(t, "ffprobe", probe)
	frameBytes := 320 * 180
	cfg.Render.FFmpegBinary = writeStub(t, "ffmpeg",
		fmt.Sprintf("head -c %d /dev/zero\nexit 0", frames*frameBytes))
	return cfg
}

// syntheticAnalysis fabricates the analyzer artifact two similar tracks and a
// loud window would produce.
func syntheticAnalysis(t *testing.T, item *queue.Item) {
	t.Helper()
	emb := []float32{1, 0, 0}
	buildFaces := func(start, end float64) []detect.Detection {
		var dets []detect.Detection
		for ts := start; ts < end; ts += 0.5 {
			dets = append(dets, detect.Detection{
				Timestamp:  ts,
				Kind:       detect.KindFace,
				Region:     &detect.Region{X: 0.4, Y: 0.3, W: 0.1, H: 0.15},
				Confidence: 0.9,
				Embedding:  emb,
				CameraID:   "cam0",
			})
		}
		return dets
	}
	faces := append(buildFaces(5, 10), buildFaces(20, 25)...)

	var energy []score.EnergySample
	for ts := 0.0; ts < 60; ts += 1.0 {
		rms := 0.05
		if ts >= 5 && ts < 10 || ts >= 20 && ts < 25 {
			rms = 0.7
		}
		energy = append(energy, score.EnergySample{Timestamp: ts, Duration: 1, RMS: rms})
	}

	tracks := []*track.Track{
		{ID: 1, CameraID: "cam0", Start: 5, End: 10, Detections: buildFaces(5, 10), MeanEmbedding: emb},
		{ID: 2, CameraID: "cam0", Start: 20, End: 25, Detections: buildFaces(20, 25), MeanEmbedding: emb},
	}

	if err := saveAnalysis(item, &Analysis{
		Duration: 60,
		CameraID: "cam0",
		Faces:    faces,
		Energy:   energy,
		Tracks:   tracks,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzerProducesArtifact(t *testing.T) {
	cfg := analyzerConfig(t, 4)
	src := filepath.Join(t.TempDir(), "cam1__gala.mp4")
	testsupport.WriteFile(t, src, 1024)

	item := &queue.Item{ID: 1, SourcePath: src, Status: queue.StatusAnalyzing}
	a := NewAnalyzer(cfg, logging.NewNop())
	if err := a.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := a.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	analysis, err := loadAnalysis(item)
	if err != nil {
		t.Fatalf("loadAnalysis: %v", err)
	}
	if analysis.Duration != 30 {
		t.Fatalf("duration = %g", analysis.Duration)
	}
	if analysis.CameraID != "cam1" || item.CameraID != "cam1" {
		t.Fatalf("camera id not propagated: %q %q", analysis.CameraID, item.CameraID)
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress = %g", item.ProgressPercent)
	}
}

func TestAnalyzerCountsEachFrameOnce(t *testing.T) {
	cfg := analyzerConfig(t, 4)
	src := filepath.Join(t.TempDir(), "cam1__gala.mp4")
	testsupport.WriteFile(t, src, 1024)

	before := testutil.ToFloat64(metrics.FramesSampled)
	item := &queue.Item{ID: 1, SourcePath: src, Status: queue.StatusAnalyzing}
	if err := NewAnalyzer(cfg, logging.NewNop()).Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := testutil.ToFloat64(metrics.FramesSampled) - before; got != 4 {
		t.Fatalf("frames_sampled_total grew by %g for 4 sampled frames", got)
	}
}

func TestAnalyzerReturnsAfterCancellation(t *testing.T) {
	cfg := analyzerConfig(t, 0)
	cfg.Render.FFmpegBinary = writeStub(t, "ffmpeg",
		"while :; do head -c 57600 /dev/zero || exit 0; sleep 0.05; done")
	src := filepath.Join(t.TempDir(), "cam1__gala.mp4")
	testsupport.WriteFile(t, src, 1024)

	item := &queue.Item{ID: 1, SourcePath: src, Status: queue.StatusAnalyzing}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewAnalyzer(cfg, logging.NewNop()).Execute(ctx, item)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error from the cancelled run")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("analyzer still running after cancellation")
	}
}

func TestAnalyzerFailsOnUnreadableSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.FFprobeBinary = writeStub(t, "ffprobe", "echo 'moov atom not found' >&2\nexit 1")
	cfg.Render.FFmpegBinary = writeStub(t, "ffmpeg", "exit 1")

	item := &queue.Item{ID: 1, SourcePath: "/media/broken.mp4", Status: queue.StatusAnalyzing}
	if err := NewAnalyzer(cfg, logging.NewNop()).Execute(context.Background(), item); err == nil {
		t.Fatal("expected an error for unreadable source")
	}
}

func TestClustererProducesGuests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	item := &queue.Item{ID: 1, SourcePath: "/media/gala.mp4", Status: queue.StatusClustering}
	syntheticAnalysis(t, item)

	c := NewClusterer(cfg, logging.NewNop())
	if err := c.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := c.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	guests, err := loadGuests(item)
	if err != nil {
		t.Fatalf("loadGuests: %v", err)
	}
	if len(guests) != 1 {
		t.Fatalf("two similar non-overlapping tracks should be 1 guest, got %d", len(guests))
	}
	if guests[0].ID != "guest-1" {
		t.Fatalf("guest id = %q", guests[0].ID)
	}
}

func TestPlannerWritesPlanArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Selection.MinTotalS = 5
	cfg.Selection.MaxTotalS = 20
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	item := &queue.Item{ID: 1, SourcePath: "/media/gala.mp4", Status: queue.StatusPlanning}
	syntheticAnalysis(t, item)
	if err := saveGuests(item, []*cluster.Guest{
		{ID: "guest-1", FirstSeen: 5, Tracks: []*track.Track{
			{ID: 1, CameraID: "cam0", Start: 5, End: 10},
			{ID: 2, CameraID: "cam0", Start: 20, End: 25},
		}},
	}); err != nil {
		t.Fatal(err)
	}

	p := NewPlanner(cfg, logging.NewNop())
	if err := p.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := p.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.PlanJSON == "" || item.TimelineJSON == "" {
		t.Fatal("planner left artifacts empty")
	}
	if item.PlanPath == "" {
		t.Fatal("plan path not set")
	}
	if _, err := os.Stat(item.PlanPath); err != nil {
		t.Fatalf("plan file missing: %v", err)
	}

	var plan struct {
		Clips []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"clips"`
	}
	if err := json.Unmarshal([]byte(item.PlanJSON), &plan); err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	if len(plan.Clips) == 0 {
		t.Fatal("plan has no clips")
	}
}

func TestPlannerParksShortPlanForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Floor far above what two 5s windows can deliver.
	cfg.Selection.MinTotalS = 55
	cfg.Selection.MaxTotalS = 60
	cfg.Selection.MinGapS = 40
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	item := &queue.Item{ID: 1, SourcePath: "/media/gala.mp4", Status: queue.StatusPlanning}
	syntheticAnalysis(t, item)
	if err := saveGuests(item, []*cluster.Guest{}); err != nil {
		t.Fatal(err)
	}

	if err := NewPlanner(cfg, logging.NewNop()).Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusReview || !item.NeedsReview {
		t.Fatalf("short plan not parked for review: %+v", item.Status)
	}
	if item.PlanPath == "" {
		t.Fatal("review item should still carry its partial plan")
	}
}

func TestPipelinePlansAreReproducible(t *testing.T) {
	runOnce := func() string {
		cfg := testsupport.NewConfig(t)
		cfg.Selection.MinTotalS = 5
		cfg.Selection.MaxTotalS = 20
		if err := cfg.EnsureDirectories(); err != nil {
			t.Fatal(err)
		}

		item := &queue.Item{ID: 1, SourcePath: "/media/cam0__gala.mp4", Status: queue.StatusClustering}
		syntheticAnalysis(t, item)
		if err := NewClusterer(cfg, logging.NewNop()).Execute(context.Background(), item); err != nil {
			t.Fatalf("cluster: %v", err)
		}
		item.Status = queue.StatusPlanning
		if err := NewPlanner(cfg, logging.NewNop()).Execute(context.Background(), item); err != nil {
			t.Fatalf("plan: %v", err)
		}
		if item.PlanJSON == "" {
			t.Fatal("planner left PlanJSON empty")
		}
		return item.PlanJSON
	}

	first := runOnce()
	if second := runOnce(); first != second {
		t.Fatalf("identical analyses produced different plans:\n%s\n%s", first, second)
	}
}

func TestRendererDisabledCompletesImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.Enabled = false

	item := &queue.Item{ID: 1, SourcePath: "/media/gala.mp4", Status: queue.StatusRendering}
	r := NewRenderer(cfg, logging.NewNop())
	if err := r.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := r.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.RenderedFile != "" {
		t.Fatalf("disabled renderer produced output: %q", item.RenderedFile)
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress = %g", item.ProgressPercent)
	}
}
