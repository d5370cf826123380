package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	IngestDir   string `toml:"ingest_dir"`
	StagingDir  string `toml:"staging_dir"`
	OutputDir   string `toml:"output_dir"`
	LogDir      string `toml:"log_dir"`
	SeatMapPath string `toml:"seatmap_path"`
	APIBind     string `toml:"api_bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Sampling contains configuration for frame and audio extraction.
type Sampling struct {
	Policy          string  `toml:"policy"` // "fixed" or "adaptive"
	FixedFPS        float64 `toml:"fixed_fps"`
	MinFPS          float64 `toml:"min_fps"`
	MaxFPS          float64 `toml:"max_fps"`
	MotionThreshold float64 `toml:"motion_threshold"`
	AudioWindowS    float64 `toml:"audio_window_s"`
	QueueDepth      int     `toml:"queue_depth"`
}

// Detection contains configuration for the detection backend and worker pool.
type Detection struct {
	Backend        string  `toml:"backend"` // "mock" or "command"
	Command        string  `toml:"command"`
	Workers        int     `toml:"workers"`
	RetryAttempts  int     `toml:"retry_attempts"`
	RetryBackoffMS int     `toml:"retry_backoff_ms"`
	MinConfidence  float64 `toml:"min_confidence"`
}

// Tracking contains configuration for temporal face association.
type Tracking struct {
	OcclusionToleranceS float64 `toml:"occlusion_tolerance_s"`
	MinTrackDurationS   float64 `toml:"min_track_duration_s"`
	MaxMatchCost        float64 `toml:"max_match_cost"`
	IoUWeight           float64 `toml:"iou_weight"`
	EmbeddingWeight     float64 `toml:"embedding_weight"`
}

// Clustering contains configuration for guest identity merging and seat lookup.
type Clustering struct {
	SimilarityThreshold   float64 `toml:"similarity_threshold"`
	SeatDistanceTolerance float64 `toml:"seat_distance_tolerance"`
}

// Scoring contains configuration for timeline interest scoring.
type Scoring struct {
	BucketS       float64 `toml:"bucket_s"`
	FaceWeight    float64 `toml:"face_weight"`
	AudioWeight   float64 `toml:"audio_weight"`
	NoveltyWeight float64 `toml:"novelty_weight"`
	Normalization string  `toml:"normalization"` // "minmax" or "percentile"
}

// Selection contains configuration for highlight segment selection.
type Selection struct {
	MinTotalS           float64 `toml:"min_total_s"`
	MaxTotalS           float64 `toml:"max_total_s"`
	MinSegLenS          float64 `toml:"min_seg_len_s"`
	MaxSegLenS          float64 `toml:"max_seg_len_s"`
	MinGapS             float64 `toml:"min_gap_s"`
	MaxSegmentsPerGuest int     `toml:"max_segments_per_guest"`
	MinScore            float64 `toml:"min_score"`
}

// Reel contains configuration for plan assembly.
type Reel struct {
	Ordering     string  `toml:"ordering"` // "chronological" or "best_first"
	Transition   string  `toml:"transition"`
	TransitionS  float64 `toml:"transition_s"`
	Title        string  `toml:"title"`
	TitleScreenS float64 `toml:"title_screen_s"`
}

// Render contains configuration for the external renderer handoff.
type Render struct {
	Enabled       bool   `toml:"enabled"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Workflow contains configuration for daemon timing and concurrency.
type Workflow struct {
	MaxConcurrentVideos int `toml:"max_concurrent_videos"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: directories, seat map location, API bind address
//   - Logging: log format and level
//   - Sampling: frame/audio extraction policy and backpressure depth
//   - Detection: pluggable backend selection, worker pool, retry policy
//   - Tracking: temporal association thresholds
//   - Clustering: guest identity merging and seat assignment
//   - Scoring: timeline signal fusion weights
//   - Selection: highlight segment constraints
//   - Reel: plan ordering and transition policy
//   - Render: external ffmpeg renderer handoff
//   - Workflow: daemon polling and concurrent-video limits
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"log"`
	Sampling   Sampling   `toml:"sampling"`
	Detection  Detection  `toml:"detection"`
	Tracking   Tracking   `toml:"tracking"`
	Clustering Clustering `toml:"clustering"`
	Scoring    Scoring    `toml:"scoring"`
	Selection  Selection  `toml:"selection"`
	Reel       Reel       `toml:"reel"`
	Render     Render     `toml:"render"`
	Workflow   Workflow   `toml:"workflow"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsmith/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.IngestDir) != "" {
		// Best-effort so config load survives when ingest storage is offline.
		_ = os.MkdirAll(c.Paths.IngestDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for sampling and rendering.
func (c *Config) FFmpegBinary() string {
	if b := strings.TrimSpace(c.Render.FFmpegBinary); b != "" {
		return b
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if b := strings.TrimSpace(c.Render.FFprobeBinary); b != "" {
		return b
	}
	return "ffprobe"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
