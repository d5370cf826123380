package config

const (
	defaultIngestDir  = "~/reelsmith/ingest"
	defaultStagingDir = "~/.local/share/reelsmith/staging"
	defaultOutputDir  = "~/reelsmith/output"
	defaultLogDir     = "~/.local/share/reelsmith/logs"
	defaultAPIBind    = "127.0.0.1:7519"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultSamplingPolicy  = "fixed"
	defaultFixedFPS        = 2.0
	defaultMinFPS          = 0.5
	defaultMaxFPS          = 6.0
	defaultMotionThreshold = 12.0
	defaultAudioWindowS    = 1.0
	defaultQueueDepth      = 64

	// Out of the box there is no detector binary to point at, so the
	// default config must stand on the mock backend to pass validation.
	defaultDetectionBackend = "mock"
	defaultDetectionWorkers = 4
	defaultRetryAttempts    = 3
	defaultRetryBackoffMS   = 250
	defaultMinConfidence    = 0.5

	defaultOcclusionToleranceS = 1.5
	defaultMinTrackDurationS   = 1.0
	defaultMaxMatchCost        = 0.7
	defaultIoUWeight           = 0.5
	defaultEmbeddingWeight     = 0.5

	defaultSimilarityThreshold   = 0.62
	defaultSeatDistanceTolerance = 0.15

	defaultBucketS       = 1.0
	defaultFaceWeight    = 0.4
	defaultAudioWeight   = 0.4
	defaultNoveltyWeight = 0.2
	defaultNormalization = "minmax"

	defaultMinTotalS           = 45.0
	defaultMaxTotalS           = 90.0
	defaultMinSegLenS          = 3.0
	defaultMaxSegLenS          = 12.0
	defaultMinGapS             = 2.0
	defaultMaxSegmentsPerGuest = 3
	defaultMinScore            = 0.2

	defaultReelOrdering  = "chronological"
	defaultTransition    = "fade"
	defaultTransitionS   = 0.5
	defaultTitleScreenS  = 3.0
	defaultMaxConcurrent = 2
	defaultPollInterval  = 5
	defaultErrorRetry    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IngestDir:  defaultIngestDir,
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Sampling: Sampling{
			Policy:          defaultSamplingPolicy,
			FixedFPS:        defaultFixedFPS,
			MinFPS:          defaultMinFPS,
			MaxFPS:          defaultMaxFPS,
			MotionThreshold: defaultMotionThreshold,
			AudioWindowS:    defaultAudioWindowS,
			QueueDepth:      defaultQueueDepth,
		},
		Detection: Detection{
			Backend:        defaultDetectionBackend,
			Workers:        defaultDetectionWorkers,
			RetryAttempts:  defaultRetryAttempts,
			RetryBackoffMS: defaultRetryBackoffMS,
			MinConfidence:  defaultMinConfidence,
		},
		Tracking: Tracking{
			OcclusionToleranceS: defaultOcclusionToleranceS,
			MinTrackDurationS:   defaultMinTrackDurationS,
			MaxMatchCost:        defaultMaxMatchCost,
			IoUWeight:           defaultIoUWeight,
			EmbeddingWeight:     defaultEmbeddingWeight,
		},
		Clustering: Clustering{
			SimilarityThreshold:   defaultSimilarityThreshold,
			SeatDistanceTolerance: defaultSeatDistanceTolerance,
		},
		Scoring: Scoring{
			BucketS:       defaultBucketS,
			FaceWeight:    defaultFaceWeight,
			AudioWeight:   defaultAudioWeight,
			NoveltyWeight: defaultNoveltyWeight,
			Normalization: defaultNormalization,
		},
		Selection: Selection{
			MinTotalS:           defaultMinTotalS,
			MaxTotalS:           defaultMaxTotalS,
			MinSegLenS:          defaultMinSegLenS,
			MaxSegLenS:          defaultMaxSegLenS,
			MinGapS:             defaultMinGapS,
			MaxSegmentsPerGuest: defaultMaxSegmentsPerGuest,
			MinScore:            defaultMinScore,
		},
		Reel: Reel{
			Ordering:     defaultReelOrdering,
			Transition:   defaultTransition,
			TransitionS:  defaultTransitionS,
			TitleScreenS: defaultTitleScreenS,
		},
		Render: Render{
			Enabled: false,
		},
		Workflow: Workflow{
			MaxConcurrentVideos: defaultMaxConcurrent,
			QueuePollInterval:   defaultPollInterval,
			ErrorRetryInterval:  defaultErrorRetry,
		},
	}
}
