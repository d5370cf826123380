package config

import (
	"errors"
	"fmt"
	"math"

	"reelsmith/internal/services"
)

// Validate ensures the configuration is usable. Invalid parameter combinations
// are rejected here, before any processing starts.
func (c *Config) Validate() error {
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateClustering(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateReel(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func configErr(format string, args ...any) error {
	return services.Wrap(services.ErrConfiguration, "config", "", fmt.Sprintf(format, args...), nil)
}

func (c *Config) validateSampling() error {
	switch c.Sampling.Policy {
	case "fixed", "adaptive":
	default:
		return configErr("sampling.policy must be \"fixed\" or \"adaptive\", got %q", c.Sampling.Policy)
	}
	if c.Sampling.MinFPS > c.Sampling.MaxFPS {
		return configErr("sampling.min_fps (%.2f) must not exceed sampling.max_fps (%.2f)", c.Sampling.MinFPS, c.Sampling.MaxFPS)
	}
	if c.Sampling.Policy == "adaptive" && c.Sampling.MotionThreshold <= 0 {
		return configErr("sampling.motion_threshold must be positive in adaptive mode")
	}
	return nil
}

func (c *Config) validateDetection() error {
	switch c.Detection.Backend {
	case "mock", "command":
	default:
		return configErr("detection.backend must be \"mock\" or \"command\", got %q", c.Detection.Backend)
	}
	if c.Detection.Backend == "command" && c.Detection.Command == "" {
		return configErr("detection.command must be set when detection.backend is \"command\"")
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return configErr("detection.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.OcclusionToleranceS <= 0 {
		return configErr("tracking.occlusion_tolerance_s must be positive")
	}
	if c.Tracking.MinTrackDurationS < 0 {
		return configErr("tracking.min_track_duration_s must not be negative")
	}
	if c.Tracking.MaxMatchCost <= 0 {
		return configErr("tracking.max_match_cost must be positive")
	}
	if c.Tracking.IoUWeight < 0 || c.Tracking.EmbeddingWeight < 0 {
		return configErr("tracking weights must not be negative")
	}
	if c.Tracking.IoUWeight+c.Tracking.EmbeddingWeight == 0 {
		return configErr("tracking.iou_weight and tracking.embedding_weight must not both be zero")
	}
	return nil
}

func (c *Config) validateClustering() error {
	if c.Clustering.SimilarityThreshold <= 0 || c.Clustering.SimilarityThreshold > 1 {
		return configErr("clustering.similarity_threshold must be in (0, 1]")
	}
	if c.Clustering.SeatDistanceTolerance < 0 {
		return configErr("clustering.seat_distance_tolerance must not be negative")
	}
	return nil
}

func (c *Config) validateScoring() error {
	weights := []float64{c.Scoring.FaceWeight, c.Scoring.AudioWeight, c.Scoring.NoveltyWeight}
	sum := 0.0
	for _, w := range weights {
		if math.IsNaN(w) || w < 0 {
			return configErr("scoring weights must be non-negative numbers")
		}
		sum += w
	}
	if sum == 0 {
		return configErr("at least one scoring weight must be positive")
	}
	switch c.Scoring.Normalization {
	case "minmax", "percentile":
	default:
		return configErr("scoring.normalization must be \"minmax\" or \"percentile\", got %q", c.Scoring.Normalization)
	}
	return nil
}

func (c *Config) validateSelection() error {
	s := c.Selection
	if s.MinTotalS < 0 || s.MaxTotalS <= 0 {
		return configErr("selection totals must be positive")
	}
	if s.MinTotalS > s.MaxTotalS {
		return configErr("selection.min_total_s (%.1f) must not exceed selection.max_total_s (%.1f)", s.MinTotalS, s.MaxTotalS)
	}
	if s.MinSegLenS <= 0 || s.MaxSegLenS <= 0 {
		return configErr("segment length bounds must be positive")
	}
	if s.MinSegLenS > s.MaxSegLenS {
		return configErr("selection.min_seg_len_s (%.1f) must not exceed selection.max_seg_len_s (%.1f)", s.MinSegLenS, s.MaxSegLenS)
	}
	if s.MinGapS < 0 {
		return configErr("selection.min_gap_s must not be negative")
	}
	if s.MaxSegmentsPerGuest < 1 {
		return configErr("selection.max_segments_per_guest must be at least 1")
	}
	if s.MinScore < 0 || s.MinScore > 1 {
		return configErr("selection.min_score must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateReel() error {
	switch c.Reel.Ordering {
	case "chronological", "best_first":
	default:
		return configErr("reel.ordering must be \"chronological\" or \"best_first\", got %q", c.Reel.Ordering)
	}
	switch c.Reel.Transition {
	case "cut", "fade":
	default:
		return configErr("reel.transition must be \"cut\" or \"fade\", got %q", c.Reel.Transition)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrentVideos < 1 {
		return configErr("workflow.max_concurrent_videos must be at least 1")
	}
	return nil
}

// IsConfigurationError reports whether err originated from config validation.
func IsConfigurationError(err error) bool {
	return errors.Is(err, services.ErrConfiguration)
}
