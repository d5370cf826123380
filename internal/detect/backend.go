package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"reelsmith/internal/config"
	"reelsmith/internal/sampler"
	"reelsmith/internal/services"
)

// Backend is the capability interface every detection provider satisfies.
// Calls must be side-effect-free and independently retryable; the pool above
// this interface handles retries and degradation.
type Backend interface {
	Name() string
	DetectFaces(ctx context.Context, frame sampler.Frame) ([]Detection, error)
	DetectAudioEvents(ctx context.Context, window sampler.AudioWindow) ([]Detection, error)
}

// Factory builds a backend from its configuration section.
type Factory func(cfg config.Detection, logger *slog.Logger) (Backend, error)

// Registry maps backend names to factories so alternative detectors can be
// substituted without touching downstream components.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates the backend named in cfg.
func (r *Registry) Create(cfg config.Detection, logger *slog.Logger) (Backend, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "detect", "create backend",
			fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
	}
	return factory(cfg, logger)
}

// DefaultRegistry returns a registry with the built-in backends installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("mock", func(cfg config.Detection, _ *slog.Logger) (Backend, error) {
		return NewMockBackend(), nil
	})
	r.Register("command", func(cfg config.Detection, logger *slog.Logger) (Backend, error) {
		return NewCommandBackend(cfg.Command, logger), nil
	})
	return r
}

// sortDetections orders detections by timestamp, then left-to-right, then by
// descending confidence, giving downstream consumers a deterministic stream.
func sortDetections(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].Timestamp != dets[j].Timestamp {
			return dets[i].Timestamp < dets[j].Timestamp
		}
		xi, xj := 0.0, 0.0
		if dets[i].Region != nil {
			xi = dets[i].Region.X
		}
		if dets[j].Region != nil {
			xj = dets[j].Region.X
		}
		if xi != xj {
			return xi < xj
		}
		return dets[i].Confidence > dets[j].Confidence
	})
}
