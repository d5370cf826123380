// Package render hands a finished edit plan to ffmpeg and reports progress.
// Everything upstream of this package is encoding-agnostic; any renderer that
// understands the plan JSON could replace it.
package render

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/reel"
	"reelsmith/internal/services"
)

// Progress is one progress report parsed from the encoder.
type Progress struct {
	Seconds float64
	Percent float64
	Speed   string
}

// Renderer drives ffmpeg over one plan.
type Renderer struct {
	cfg    config.Render
	logger *slog.Logger
	// onProgress, when set, receives parsed encoder progress.
	onProgress func(Progress)
}

// New returns a Renderer with the given configuration.
func New(cfg config.Render, logger *slog.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: logging.NewComponentLogger(logger, "render")}
}

// OnProgress installs a progress callback. Must be called before Render.
func (r *Renderer) OnProgress(fn func(Progress)) { r.onProgress = fn }

// Render encodes the plan into outputPath. The source referenced by the plan
// must be readable; a nonzero ffmpeg exit is reported with its stderr tail.
func (r *Renderer) Render(ctx context.Context, plan *reel.Plan, outputPath string) error {
	if len(plan.Clips) == 0 {
		return services.Wrap(services.ErrLogicInvariant, "render", "render", "plan has no clips", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "render", "prepare output", outputPath, err)
	}

	args := r.arguments(plan, outputPath)
	r.logger.Info("rendering reel",
		logging.String("plan_id", plan.ID),
		logging.String("output", outputPath),
		logging.Int("clips", len(plan.Clips)))

	cmd := exec.CommandContext(ctx, r.binary(), args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "start ffmpeg", r.binary(), err)
	}
	var stderrTail tailBuffer
	cmd.Stderr = &stderrTail
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "start ffmpeg", r.binary(), err)
	}

	r.consumeProgress(stdout, plan.TotalS)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, "render", "ffmpeg",
			strings.TrimSpace(stderrTail.String()), err)
	}
	r.logger.Info("reel rendered", logging.String("output", outputPath))
	return nil
}

func (r *Renderer) binary() string {
	if r.cfg.FFmpegBinary != "" {
		return r.cfg.FFmpegBinary
	}
	return "ffmpeg"
}

// arguments builds one filter graph: every clip is trimmed from the source,
// optionally faded at its joins, and the pieces are concatenated.
func (r *Renderer) arguments(plan *reel.Plan, outputPath string) []string {
	args := []string{"-y", "-nostdin", "-v", "error", "-progress", "pipe:1", "-i", plan.Source}

	var filter strings.Builder
	for i, clip := range plan.Clips {
		fmt.Fprintf(&filter, "[0:v]trim=start=%g:end=%g,setpts=PTS-STARTPTS", clip.Start, clip.End)
		if clip.Transition.Kind == reel.TransitionFade && clip.Transition.Duration > 0 {
			fmt.Fprintf(&filter, ",fade=t=in:st=0:d=%g", clip.Transition.Duration)
		}
		fmt.Fprintf(&filter, "[v%d];", i)
		fmt.Fprintf(&filter, "[0:a]atrim=start=%g:end=%g,asetpts=PTS-STARTPTS[a%d];", clip.Start, clip.End, i)
	}
	for i := range plan.Clips {
		fmt.Fprintf(&filter, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=1[vout][aout]", len(plan.Clips))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[vout]", "-map", "[aout]",
		outputPath)
	return args
}

// consumeProgress reads ffmpeg's -progress key=value stream.
func (r *Renderer) consumeProgress(reader interface{ Read([]byte) (int, error) }, totalS float64) {
	scanner := bufio.NewScanner(reader)
	var current Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us":
			us, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			current.Seconds = us / 1e6
			if totalS > 0 {
				current.Percent = 100 * current.Seconds / totalS
				if current.Percent > 100 {
					current.Percent = 100
				}
			}
		case "speed":
			current.Speed = strings.TrimSpace(value)
		case "progress":
			if r.onProgress != nil {
				r.onProgress(current)
			}
		}
	}
}

// tailBuffer keeps the last chunk of stderr so failures report the relevant
// lines instead of megabytes of log.
type tailBuffer struct {
	buf []byte
}

const tailLimit = 4096

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > tailLimit {
		t.buf = t.buf[len(t.buf)-tailLimit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
