package detect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/metrics"
	"reelsmith/internal/sampler"
)

// Pool fans frames and audio windows out to a fixed number of workers. Each
// unit of work retries through the backend a bounded number of times; a unit
// that keeps failing degrades to zero detections so a flaky detector never
// sinks the whole video.
type Pool struct {
	backend Backend
	cfg     config.Detection
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewPool builds a pool around the given backend.
func NewPool(backend Backend, cfg config.Detection, logger *slog.Logger) *Pool {
	return &Pool{
		backend: backend,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "detect-pool"),
		sleep:   sleepCtx,
	}
}

// Run drains both channels and returns the accumulated detections sorted by
// timestamp. Results below the configured confidence floor are dropped. The
// returned error is non-nil only for cancellation; backend failures degrade.
func (p *Pool) Run(ctx context.Context, frames <-chan sampler.Frame, windows <-chan sampler.AudioWindow) (faces []Detection, audio []Detection, err error) {
	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)

	for i := 0; i < workers; i++ {
		group.Go(func() error {
			frames, windows := frames, windows
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case frame, ok := <-frames:
					if !ok {
						frames = nil
						if windows == nil {
							return nil
						}
						continue
					}
					dets := p.detectWithRetry(ctx, "faces", frame.Timestamp, func() ([]Detection, error) {
						return p.backend.DetectFaces(ctx, frame)
					})
					mu.Lock()
					faces = append(faces, dets...)
					mu.Unlock()
				case window, ok := <-windows:
					if !ok {
						windows = nil
						if frames == nil {
							return nil
						}
						continue
					}
					dets := p.detectWithRetry(ctx, "audio", window.Timestamp, func() ([]Detection, error) {
						return p.backend.DetectAudioEvents(ctx, window)
					})
					mu.Lock()
					audio = append(audio, dets...)
					mu.Unlock()
				}
			}
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	faces = p.filter(faces)
	audio = p.filter(audio)
	sortDetections(faces)
	sortDetections(audio)
	for _, d := range faces {
		metrics.Detections.WithLabelValues(string(d.Kind)).Inc()
	}
	for _, d := range audio {
		metrics.Detections.WithLabelValues(string(d.Kind)).Inc()
	}
	return faces, audio, nil
}

func (p *Pool) detectWithRetry(ctx context.Context, what string, timestamp float64, call func() ([]Detection, error)) []Detection {
	attempts := p.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(p.cfg.RetryBackoffMS) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		dets, err := call()
		if err == nil {
			return dets
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if attempt < attempts {
			metrics.BackendRetries.Inc()
			p.logger.Warn("detection attempt failed, retrying",
				logging.String("what", what),
				logging.Float64("timestamp", timestamp),
				logging.Int("attempt", attempt),
				logging.Error(err))
			if backoff > 0 {
				if err := p.sleep(ctx, backoff); err != nil {
					return nil
				}
			}
		}
	}

	metrics.BackendDegraded.Inc()
	p.logger.Warn("detection degraded to zero results",
		logging.String("what", what),
		logging.Float64("timestamp", timestamp),
		logging.Error(lastErr))
	return nil
}

func (p *Pool) filter(dets []Detection) []Detection {
	if p.cfg.MinConfidence <= 0 {
		return dets
	}
	kept := dets[:0]
	for _, d := range dets {
		if d.Confidence >= p.cfg.MinConfidence {
			kept = append(kept, d)
		}
	}
	return kept
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
