package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAnalyzing  Status = "analyzing"
	StatusAnalyzed   Status = "analyzed"
	StatusClustering Status = "clustering"
	StatusClustered  Status = "clustered"
	StatusPlanning   Status = "planning"
	StatusPlanned    Status = "planned"
	StatusRendering  Status = "rendering"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

// DaemonStopReason is the progress message set when items are interrupted by
// daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusClustering,
	StatusClustered,
	StatusPlanning,
	StatusPlanned,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusAnalyzing:  {},
	StatusClustering: {},
	StatusPlanning:   {},
	StatusRendering:  {},
}

// processingRollbacks maps each in-flight status to the resting status a
// stale item returns to after a crash.
var processingRollbacks = map[Status]Status{
	StatusAnalyzing:  StatusPending,
	StatusClustering: StatusAnalyzed,
	StatusPlanning:   StatusClustered,
	StatusRendering:  StatusPlanned,
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents a queue item persisted in SQLite. One item is one source
// video walking through analysis, clustering, planning, and rendering.
type Item struct {
	ID              int64
	SourcePath      string
	CameraID        string
	Title           string
	Status          Status
	AnalysisJSON    string
	GuestsJSON      string
	TimelineJSON    string
	PlanJSON        string
	PlanPath        string
	RenderedFile    string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// InitProgress resets progress fields for a new stage. ProgressMessage is set
// to message, ProgressPercent resets to 0, and ErrorMessage is cleared.
func (i *Item) InitProgress(stage, message string) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.ProgressStage = "Failed"
}

// SetReview parks the item for manual inspection without discarding partial
// results.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ProgressMessage = reason
}
