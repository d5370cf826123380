package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/reel"
	"reelsmith/internal/render"
	"reelsmith/internal/stage"
)

// Renderer encodes the planned reel with ffmpeg. When rendering is disabled
// the stage completes immediately: the plan artifact is the deliverable and
// an external renderer takes it from there.
type Renderer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRenderer builds the renderer stage.
func NewRenderer(cfg *config.Config, logger *slog.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: logging.NewComponentLogger(logger, "renderer")}
}

func (r *Renderer) Prepare(_ context.Context, item *queue.Item) error {
	if r.cfg.Render.Enabled && item.PlanPath == "" {
		return fmt.Errorf("item %d has no plan artifact", item.ID)
	}
	item.SetProgress("Rendering", "Preparing", 0)
	return nil
}

func (r *Renderer) Execute(ctx context.Context, item *queue.Item) error {
	if !r.cfg.Render.Enabled {
		item.SetProgress("Rendering", "Rendering disabled, plan handed off", 100)
		return nil
	}

	plan, err := reel.ReadFile(item.PlanPath)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(r.cfg.Paths.OutputDir, outputFileName(item))
	renderer := render.New(r.cfg.Render, r.logger)
	renderer.OnProgress(func(p render.Progress) {
		item.SetProgress("Rendering", fmt.Sprintf("Encoding %.0f%% (%s)", p.Percent, p.Speed), p.Percent)
	})
	if err := renderer.Render(ctx, plan, outputPath); err != nil {
		return err
	}

	item.RenderedFile = outputPath
	item.SetProgress("Rendering", "Reel rendered", 100)
	return nil
}

func (r *Renderer) HealthCheck(_ context.Context) stage.Health {
	if !r.cfg.Render.Enabled {
		return stage.Healthy("renderer")
	}
	if _, err := exec.LookPath(r.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy("renderer", fmt.Sprintf("%s not found in PATH", r.cfg.FFmpegBinary()))
	}
	return stage.Healthy("renderer")
}

func outputFileName(item *queue.Item) string {
	base := strings.TrimSuffix(filepath.Base(item.SourcePath), filepath.Ext(item.SourcePath))
	if base == "" {
		base = fmt.Sprintf("item-%d", item.ID)
	}
	return base + ".reel.mp4"
}
