package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeSampling()
	c.normalizeDetection()
	c.normalizeScoring()
	c.normalizeReel()
	c.normalizeWorkflow()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.IngestDir, err = expandPath(c.Paths.IngestDir); err != nil {
		return fmt.Errorf("paths.ingest_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SeatMapPath) != "" {
		if c.Paths.SeatMapPath, err = expandPath(c.Paths.SeatMapPath); err != nil {
			return fmt.Errorf("paths.seatmap_path: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeSampling() {
	c.Sampling.Policy = strings.ToLower(strings.TrimSpace(c.Sampling.Policy))
	if c.Sampling.Policy == "" {
		c.Sampling.Policy = defaultSamplingPolicy
	}
	if c.Sampling.FixedFPS <= 0 {
		c.Sampling.FixedFPS = defaultFixedFPS
	}
	if c.Sampling.MinFPS <= 0 {
		c.Sampling.MinFPS = defaultMinFPS
	}
	if c.Sampling.MaxFPS <= 0 {
		c.Sampling.MaxFPS = defaultMaxFPS
	}
	if c.Sampling.AudioWindowS <= 0 {
		c.Sampling.AudioWindowS = defaultAudioWindowS
	}
	if c.Sampling.QueueDepth <= 0 {
		c.Sampling.QueueDepth = defaultQueueDepth
	}
}

func (c *Config) normalizeDetection() {
	c.Detection.Backend = strings.ToLower(strings.TrimSpace(c.Detection.Backend))
	c.Detection.Command = strings.TrimSpace(c.Detection.Command)
	if c.Detection.Backend == "" {
		// A configured command implies the command backend; otherwise fall
		// back to the mock.
		if c.Detection.Command != "" {
			c.Detection.Backend = "command"
		} else {
			c.Detection.Backend = defaultDetectionBackend
		}
	}
	if c.Detection.Workers <= 0 {
		c.Detection.Workers = defaultDetectionWorkers
	}
	if c.Detection.RetryAttempts < 0 {
		c.Detection.RetryAttempts = 0
	}
	if c.Detection.RetryBackoffMS <= 0 {
		c.Detection.RetryBackoffMS = defaultRetryBackoffMS
	}
}

func (c *Config) normalizeScoring() {
	c.Scoring.Normalization = strings.ToLower(strings.TrimSpace(c.Scoring.Normalization))
	if c.Scoring.Normalization == "" {
		c.Scoring.Normalization = defaultNormalization
	}
	if c.Scoring.BucketS <= 0 {
		c.Scoring.BucketS = defaultBucketS
	}
}

func (c *Config) normalizeReel() {
	c.Reel.Ordering = strings.ToLower(strings.TrimSpace(c.Reel.Ordering))
	if c.Reel.Ordering == "" {
		c.Reel.Ordering = defaultReelOrdering
	}
	c.Reel.Transition = strings.ToLower(strings.TrimSpace(c.Reel.Transition))
	if c.Reel.Transition == "" {
		c.Reel.Transition = defaultTransition
	}
	if c.Reel.TransitionS < 0 {
		c.Reel.TransitionS = defaultTransitionS
	}
	c.Reel.Title = strings.TrimSpace(c.Reel.Title)
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetry
	}
}
