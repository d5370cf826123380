// Package metrics exposes prometheus instrumentation for the pipeline. All
// collectors register on the default registry and are served by the daemon's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VideosProcessed counts pipeline runs by terminal outcome.
	VideosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelsmith",
		Name:      "videos_processed_total",
		Help:      "Completed pipeline runs by outcome.",
	}, []string{"outcome"})

	// FramesSampled counts frames delivered by the sampler.
	FramesSampled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelsmith",
		Name:      "frames_sampled_total",
		Help:      "Video frames extracted for detection.",
	})

	// AudioWindowsSampled counts audio windows delivered by the sampler.
	AudioWindowsSampled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelsmith",
		Name:      "audio_windows_sampled_total",
		Help:      "Audio windows extracted for detection.",
	})

	// Detections counts detections by kind.
	Detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelsmith",
		Name:      "detections_total",
		Help:      "Detections produced by the backend, by kind.",
	}, []string{"kind"})

	// BackendRetries counts transient backend failures that were retried.
	BackendRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelsmith",
		Name:      "backend_retries_total",
		Help:      "Detection backend calls retried after transient failure.",
	})

	// BackendDegraded counts units that exhausted retries and degraded to zero detections.
	BackendDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelsmith",
		Name:      "backend_degraded_total",
		Help:      "Frames or audio windows degraded to zero detections after retry exhaustion.",
	})

	// SegmentsSelected counts highlight segments emitted into plans.
	SegmentsSelected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelsmith",
		Name:      "segments_selected_total",
		Help:      "Highlight segments selected into reel plans.",
	})

	// ActiveRuns tracks concurrently executing pipeline runs.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reelsmith",
		Name:      "active_runs",
		Help:      "Pipeline runs currently executing.",
	})
)
