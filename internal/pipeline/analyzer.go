package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"reelsmith/internal/config"
	"reelsmith/internal/detect"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/metrics"
	"reelsmith/internal/queue"
	"reelsmith/internal/sampler"
	"reelsmith/internal/score"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/track"
)

// Analyzer samples the source, runs detection over frames and audio windows,
// and associates face detections into tracks. Its artifact feeds every later
// stage.
type Analyzer struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *detect.Registry
}

// NewAnalyzer builds the analyzer stage.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "analyzer"),
		registry: detect.DefaultRegistry(),
	}
}

func (a *Analyzer) Prepare(_ context.Context, item *queue.Item) error {
	if item.SourcePath == "" {
		return services.Wrap(services.ErrSourceUnreadable, "analyzer", "prepare", "item has no source path", nil)
	}
	item.SetProgress("Analyzing", "Opening source", 0)
	return nil
}

func (a *Analyzer) Execute(ctx context.Context, item *queue.Item) error {
	src, err := media.Open(ctx, a.cfg.FFprobeBinary(), item.SourcePath)
	if err != nil {
		metrics.VideosProcessed.WithLabelValues("unreadable").Inc()
		return err
	}
	item.CameraID = src.CameraID
	item.SetProgress("Analyzing", "Sampling and detecting", 10)

	backend, err := a.registry.Create(a.cfg.Detection, a.logger)
	if err != nil {
		return err
	}
	pool := detect.NewPool(backend, a.cfg.Detection, a.logger)
	smp := sampler.New(a.cfg.Sampling, a.cfg.FFmpegBinary(), a.logger)

	// The forwarders below must not outlive this call: if the pool exits
	// early their sends would block forever without the cancel.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames, frameErrs := smp.Frames(runCtx, src)
	windows, windowErrs := smp.AudioWindows(runCtx, src)

	// The sampler meters frames_sampled/audio_windows_sampled itself; these
	// forwarders only count for truncation handling and collect energy.
	var (
		frameCount int
		energy     []score.EnergySample
	)
	countedFrames := make(chan sampler.Frame, cap(frames))
	go func() {
		defer close(countedFrames)
		for f := range frames {
			frameCount++
			select {
			case countedFrames <- f:
			case <-runCtx.Done():
				return
			}
		}
	}()
	meteredWindows := make(chan sampler.AudioWindow, cap(windows))
	go func() {
		defer close(meteredWindows)
		for w := range windows {
			energy = append(energy, score.EnergySample{
				Timestamp: w.Timestamp,
				Duration:  w.Duration,
				RMS:       w.RMS,
			})
			select {
			case meteredWindows <- w:
			case <-runCtx.Done():
				return
			}
		}
	}()

	faces, audioEvents, err := pool.Run(runCtx, countedFrames, meteredWindows)
	if err != nil {
		return err
	}

	truncated := false
	if err := firstError(frameErrs, windowErrs); err != nil {
		// A mid-stream demux failure keeps whatever was sampled before it;
		// an unreadable source keeps nothing and fails the run.
		if errors.Is(err, services.ErrUnsupportedCodec) && frameCount > 0 {
			truncated = true
			a.logger.Warn("source truncated mid-stream, continuing with partial samples",
				logging.Int("frames", frameCount),
				logging.Error(err))
		} else {
			metrics.VideosProcessed.WithLabelValues("unreadable").Inc()
			return err
		}
	}

	item.SetProgress("Analyzing", "Building tracks", 80)
	tracks := track.NewBuilder(a.cfg.Tracking, a.logger).Build(faces)

	analysis := &Analysis{
		Duration:    src.DurationSeconds,
		CameraID:    src.CameraID,
		Truncated:   truncated,
		Faces:       faces,
		AudioEvents: audioEvents,
		Energy:      energy,
		Tracks:      tracks,
	}
	if err := saveAnalysis(item, analysis); err != nil {
		return err
	}
	item.SetProgress("Analyzing", fmt.Sprintf("%d faces, %d tracks", len(faces), len(tracks)), 100)
	return nil
}

func (a *Analyzer) HealthCheck(_ context.Context) stage.Health {
	for _, bin := range []string{a.cfg.FFmpegBinary(), a.cfg.FFprobeBinary()} {
		if _, err := exec.LookPath(bin); err != nil {
			return stage.Unhealthy("analyzer", fmt.Sprintf("%s not found in PATH", bin))
		}
	}
	if _, err := a.registry.Create(a.cfg.Detection, logging.NewNop()); err != nil {
		return stage.Unhealthy("analyzer", "detection backend unavailable")
	}
	return stage.Healthy("analyzer")
}

// firstError drains both sampler error channels, favoring the frame stream's
// verdict.
func firstError(frameErrs, windowErrs <-chan error) error {
	var first error
	for err := range frameErrs {
		if err != nil && first == nil {
			first = err
		}
	}
	for err := range windowErrs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
