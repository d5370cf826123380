package pipeline

import (
	"encoding/json"

	"reelsmith/internal/cluster"
	"reelsmith/internal/detect"
	"reelsmith/internal/queue"
	"reelsmith/internal/reel"
	"reelsmith/internal/score"
	"reelsmith/internal/services"
	"reelsmith/internal/track"
)

// Analysis is the analyzer stage's artifact: everything downstream stages
// need, persisted on the queue item so a restart resumes instead of
// re-decoding the source.
type Analysis struct {
	Duration    float64              `json:"duration"`
	CameraID    string               `json:"camera_id"`
	Truncated   bool                 `json:"truncated,omitempty"`
	Faces       []detect.Detection   `json:"faces,omitempty"`
	AudioEvents []detect.Detection   `json:"audio_events,omitempty"`
	Energy      []score.EnergySample `json:"energy,omitempty"`
	Tracks      []*track.Track       `json:"tracks,omitempty"`
}

func saveAnalysis(item *queue.Item, a *Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return services.Wrap(services.ErrLogicInvariant, "analyzer", "encode analysis", "", err)
	}
	item.AnalysisJSON = string(data)
	return nil
}

func loadAnalysis(item *queue.Item) (*Analysis, error) {
	if item.AnalysisJSON == "" {
		return nil, services.Wrap(services.ErrLogicInvariant, "pipeline", "load analysis",
			"item has no analysis artifact; rerun analysis", nil)
	}
	var a Analysis
	if err := json.Unmarshal([]byte(item.AnalysisJSON), &a); err != nil {
		return nil, services.Wrap(services.ErrLogicInvariant, "pipeline", "parse analysis", "", err)
	}
	return &a, nil
}

func saveGuests(item *queue.Item, guests []*cluster.Guest) error {
	data, err := json.Marshal(guests)
	if err != nil {
		return services.Wrap(services.ErrLogicInvariant, "clusterer", "encode guests", "", err)
	}
	item.GuestsJSON = string(data)
	return nil
}

func loadGuests(item *queue.Item) ([]*cluster.Guest, error) {
	if item.GuestsJSON == "" {
		return nil, services.Wrap(services.ErrLogicInvariant, "pipeline", "load guests",
			"item has no guest artifact; rerun clustering", nil)
	}
	var guests []*cluster.Guest
	if err := json.Unmarshal([]byte(item.GuestsJSON), &guests); err != nil {
		return nil, services.Wrap(services.ErrLogicInvariant, "pipeline", "parse guests", "", err)
	}
	return guests, nil
}

func encodePlan(p *reel.Plan) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

func saveTimeline(item *queue.Item, tl *score.Timeline) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return services.Wrap(services.ErrLogicInvariant, "planner", "encode timeline", "", err)
	}
	item.TimelineJSON = string(data)
	return nil
}
