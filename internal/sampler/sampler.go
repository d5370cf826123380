package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/metrics"
	"reelsmith/internal/services"
)

// Analysis frames are decoded at a fixed small resolution; detection backends
// receive these dimensions alongside the pixels.
const (
	AnalysisWidth  = 320
	AnalysisHeight = 180
	audioRate      = 16000
)

// Sampler extracts analysis frames and audio windows from a media source by
// streaming raw output from an ffmpeg child process. Sequences are lazy:
// nothing is decoded until the consumer drains the channel, and a full channel
// blocks the decoder (bounded-queue backpressure). Restart by calling Frames
// or AudioWindows again, which re-opens the source.
type Sampler struct {
	cfg    config.Sampling
	ffmpeg string
	logger *slog.Logger
}

// New constructs a Sampler for the provided sampling policy.
func New(cfg config.Sampling, ffmpegBinary string, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sampler{cfg: cfg, ffmpeg: ffmpegBinary, logger: logging.NewComponentLogger(logger, "sampler")}
}

// Frames streams analysis frames from the source. The returned error channel
// receives at most one value after the frame channel closes: nil on clean
// completion, an unsupported-codec error when demuxing fails mid-stream
// (frames delivered before the failure point remain valid), or a
// source-unreadable error when decoding never produced a frame.
func (s *Sampler) Frames(ctx context.Context, src *media.Source) (<-chan Frame, <-chan error) {
	frames := make(chan Frame, s.cfg.QueueDepth)
	errc := make(chan error, 1)

	decodeFPS := s.cfg.FixedFPS
	if s.cfg.Policy == "adaptive" {
		decodeFPS = s.cfg.MaxFPS
	}

	go func() {
		defer close(frames)
		errc <- s.streamFrames(ctx, src, decodeFPS, frames)
		close(errc)
	}()

	return frames, errc
}

func (s *Sampler) streamFrames(ctx context.Context, src *media.Source, decodeFPS float64, out chan<- Frame) error {
	args := []string{
		"-v", "error", "-nostdin",
		"-i", src.Path,
		"-vf", fmt.Sprintf("fps=%g,scale=%d:%d", decodeFPS, AnalysisWidth, AnalysisHeight),
		"-pix_fmt", "gray",
		"-f", "rawvideo",
		"-",
	}
	cmd := exec.CommandContext(ctx, s.ffmpeg, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrSourceUnreadable, "sampler", "frames", src.Path, err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrSourceUnreadable, "sampler", "frames", src.Path, err)
	}

	frameBytes := AnalysisWidth * AnalysisHeight
	interval := 1.0 / decodeFPS
	decider := newEmitDecider(s.cfg)

	emitted := 0
	decoded := 0
	var readErr error
	for {
		pixels := make([]byte, frameBytes)
		if _, err := io.ReadFull(stdout, pixels); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
		frame := Frame{
			Timestamp: float64(decoded) * interval,
			Index:     decoded,
			Width:     AnalysisWidth,
			Height:    AnalysisHeight,
			Pixels:    pixels,
			CameraID:  src.CameraID,
		}
		decoded++
		if !decider.shouldEmit(frame) {
			continue
		}
		select {
		case out <- frame:
			emitted++
			metrics.FramesSampled.Inc()
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return ctx.Err()
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil || waitErr != nil {
		cause := readErr
		if cause == nil {
			cause = waitErr
		}
		detail := strings.TrimSpace(stderr.String())
		if emitted == 0 {
			return services.Wrap(services.ErrSourceUnreadable, "sampler", "frames", detail, cause)
		}
		s.logger.Warn("demux failed mid-stream, keeping partial samples",
			logging.String("source", src.Path),
			logging.Int("frames_delivered", emitted),
			logging.Error(cause),
		)
		return services.Wrap(services.ErrUnsupportedCodec, "sampler", "frames", detail, cause)
	}
	return nil
}

// AudioWindows streams fixed-length mono audio windows from the source. The
// error channel behaves like the one returned by Frames. Sources without an
// audio stream yield a closed, empty channel and a nil error.
func (s *Sampler) AudioWindows(ctx context.Context, src *media.Source) (<-chan AudioWindow, <-chan error) {
	windows := make(chan AudioWindow, s.cfg.QueueDepth)
	errc := make(chan error, 1)

	if !src.HasAudio() {
		close(windows)
		errc <- nil
		close(errc)
		return windows, errc
	}

	go func() {
		defer close(windows)
		errc <- s.streamAudio(ctx, src, windows)
		close(errc)
	}()

	return windows, errc
}

func (s *Sampler) streamAudio(ctx context.Context, src *media.Source, out chan<- AudioWindow) error {
	args := []string{
		"-v", "error", "-nostdin",
		"-i", src.Path,
		"-vn", "-ac", "1", "-ar", fmt.Sprintf("%d", audioRate),
		"-f", "s16le",
		"-",
	}
	cmd := exec.CommandContext(ctx, s.ffmpeg, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrSourceUnreadable, "sampler", "audio", src.Path, err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrSourceUnreadable, "sampler", "audio", src.Path, err)
	}

	windowSamples := int(s.cfg.AudioWindowS * audioRate)
	raw := make([]byte, windowSamples*2)
	emitted := 0
	var readErr error
	for {
		n, err := io.ReadFull(stdout, raw)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			readErr = err
			break
		}
		sampleCount := n / 2
		if sampleCount == 0 {
			break
		}
		samples := make([]int16, sampleCount)
		for i := 0; i < sampleCount; i++ {
			samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		}
		window := AudioWindow{
			Timestamp:  float64(emitted) * s.cfg.AudioWindowS,
			Duration:   float64(sampleCount) / audioRate,
			SampleRate: audioRate,
			Samples:    samples,
			RMS:        rmsOf(samples),
			CameraID:   src.CameraID,
		}
		select {
		case out <- window:
			emitted++
			metrics.AudioWindowsSampled.Inc()
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return ctx.Err()
		}
		if err != nil {
			break // short final window
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil || waitErr != nil {
		cause := readErr
		if cause == nil {
			cause = waitErr
		}
		detail := strings.TrimSpace(stderr.String())
		if emitted == 0 {
			return services.Wrap(services.ErrSourceUnreadable, "sampler", "audio", detail, cause)
		}
		s.logger.Warn("audio demux failed mid-stream, keeping partial samples",
			logging.String("source", src.Path),
			logging.Int("windows_delivered", emitted),
			logging.Error(cause),
		)
		return services.Wrap(services.ErrUnsupportedCodec, "sampler", "audio", detail, cause)
	}
	return nil
}
