package track

import (
	"log/slog"
	"sort"

	"reelsmith/internal/config"
	"reelsmith/internal/detect"
	"reelsmith/internal/logging"
)

// Builder associates per-frame face detections into tracks. Matching is
// greedy: every frame, each active track is paired with the cheapest
// compatible detection, where cost blends region overlap and embedding
// distance. Tracks unseen for longer than the occlusion tolerance are closed,
// and tracks shorter than the minimum duration are dropped at the end.
type Builder struct {
	cfg    config.Tracking
	logger *slog.Logger
}

// NewBuilder returns a Builder using the given tracking configuration.
func NewBuilder(cfg config.Tracking, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logging.NewComponentLogger(logger, "track")}
}

type activeTrack struct {
	track    *Track
	lastSeen float64
}

// Build consumes face detections, which must be time-ordered, and returns the
// finished tracks ordered by start time. Detections from different cameras
// never join the same track.
func (b *Builder) Build(detections []detect.Detection) []*Track {
	var (
		active   []*activeTrack
		finished []*Track
		nextID   = 1
	)

	for start := 0; start < len(detections); {
		end := start
		ts := detections[start].Timestamp
		for end < len(detections) && detections[end].Timestamp == ts {
			end++
		}
		frame := detections[start:end]
		start = end

		// Close tracks whose silence exceeds the occlusion tolerance before
		// matching, so a long-gone face never steals a fresh detection.
		active = b.expire(active, ts, &finished)

		assigned := b.matchFrame(active, frame, ts)
		for i, d := range frame {
			if assigned[i] {
				continue
			}
			if d.Region == nil {
				continue
			}
			tr := &Track{ID: nextID, CameraID: d.CameraID, Detections: []detect.Detection{d}}
			nextID++
			active = append(active, &activeTrack{track: tr, lastSeen: ts})
		}
	}

	for _, at := range active {
		finished = append(finished, at.track)
	}

	kept := finished[:0]
	for _, tr := range finished {
		tr.finish()
		if tr.Duration() < b.cfg.MinTrackDurationS {
			continue
		}
		kept = append(kept, tr)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].ID < kept[j].ID
	})
	b.logger.Debug("tracks built",
		logging.Int("detections", len(detections)),
		logging.Int("tracks", len(kept)))
	return kept
}

func (b *Builder) expire(active []*activeTrack, now float64, finished *[]*Track) []*activeTrack {
	kept := active[:0]
	for _, at := range active {
		if now-at.lastSeen > b.cfg.OcclusionToleranceS {
			*finished = append(*finished, at.track)
			continue
		}
		kept = append(kept, at)
	}
	return kept
}

type candidate struct {
	trackIdx int
	detIdx   int
	cost     float64
}

// matchFrame pairs active tracks with the frame's detections by ascending
// cost. Ties go to the more confident detection, then to the leftmost one.
func (b *Builder) matchFrame(active []*activeTrack, frame []detect.Detection, ts float64) []bool {
	assigned := make([]bool, len(frame))
	if len(active) == 0 || len(frame) == 0 {
		return assigned
	}

	var candidates []candidate
	for ti, at := range active {
		for di, d := range frame {
			if d.Region == nil || d.CameraID != at.track.CameraID {
				continue
			}
			cost := b.matchCost(at.track, d)
			if cost > b.cfg.MaxMatchCost {
				continue
			}
			candidates = append(candidates, candidate{trackIdx: ti, detIdx: di, cost: cost})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.cost != cj.cost {
			return ci.cost < cj.cost
		}
		di, dj := frame[ci.detIdx], frame[cj.detIdx]
		if di.Confidence != dj.Confidence {
			return di.Confidence > dj.Confidence
		}
		if di.Region.X != dj.Region.X {
			return di.Region.X < dj.Region.X
		}
		return active[ci.trackIdx].track.ID < active[cj.trackIdx].track.ID
	})

	trackTaken := make([]bool, len(active))
	for _, c := range candidates {
		if trackTaken[c.trackIdx] || assigned[c.detIdx] {
			continue
		}
		trackTaken[c.trackIdx] = true
		assigned[c.detIdx] = true
		at := active[c.trackIdx]
		at.track.Detections = append(at.track.Detections, frame[c.detIdx])
		at.lastSeen = ts
	}
	return assigned
}

func (b *Builder) matchCost(tr *Track, d detect.Detection) float64 {
	last := tr.Detections[len(tr.Detections)-1]
	overlap := 0.0
	if last.Region != nil && d.Region != nil {
		overlap = last.Region.IoU(*d.Region)
	}
	cost := b.cfg.IoUWeight * (1 - overlap)

	if len(d.Embedding) > 0 {
		sim := CosineSimilarity(meanEmbedding(tr.Detections), d.Embedding)
		cost += b.cfg.EmbeddingWeight * (1 - sim)
	}
	return cost
}
