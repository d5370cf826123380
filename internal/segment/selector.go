package segment

import (
	"log/slog"
	"math"
	"sort"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/score"
)

// Selector converts a scored timeline into non-overlapping highlight
// intervals. Selection is greedy: the best remaining candidate that fits the
// length, gap, diversity, and total-duration constraints wins each round,
// with ties going to the earlier start so identical inputs always produce
// identical output.
type Selector struct {
	cfg    config.Selection
	logger *slog.Logger
}

// New returns a Selector with the given configuration.
func New(cfg config.Selection, logger *slog.Logger) *Selector {
	return &Selector{cfg: cfg, logger: logging.NewComponentLogger(logger, "segment")}
}

// Select picks highlight segments from the timeline. The result is sorted by
// start time and pairwise non-overlapping. When nothing clears the score
// floor the single best achievable segment is returned, so only a
// zero-duration source yields an empty selection. A source shorter than the
// configured minimum total yields the best achievable subset, not an error.
func (s *Selector) Select(tl *score.Timeline) []Segment {
	if tl == nil || len(tl.Buckets) == 0 {
		return nil
	}

	candidates := s.candidates(tl)
	if len(candidates) == 0 {
		best := s.bestEffortSegment(tl)
		s.logger.Debug("no candidate cleared the score floor, using best effort",
			logging.Float64("start", best.Start),
			logging.Float64("score", best.Score))
		return []Segment{best}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Start < candidates[j].Start
	})

	var (
		selected  []Segment
		total     float64
		guestUses = make(map[string]int)
	)
	for _, cand := range candidates {
		if total >= s.cfg.MaxTotalS {
			break
		}
		if overlapsOrTooClose(selected, cand, s.cfg.MinGapS) {
			continue
		}
		if dominant := cand.DominantGuest(); dominant != "" &&
			s.cfg.MaxSegmentsPerGuest > 0 &&
			guestUses[dominant] >= s.cfg.MaxSegmentsPerGuest {
			continue
		}
		if total+cand.Duration() > s.cfg.MaxTotalS {
			trimmed, ok := s.trimToFit(cand, s.cfg.MaxTotalS-total)
			if !ok {
				continue
			}
			cand = trimmed
		}
		selected = append(selected, cand)
		total += cand.Duration()
		if dominant := cand.DominantGuest(); dominant != "" {
			guestUses[dominant]++
		}
	}

	if len(selected) == 0 {
		selected = []Segment{candidates[0]}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Start < selected[j].Start })
	s.logger.Debug("segments selected",
		logging.Int("candidates", len(candidates)),
		logging.Int("selected", len(selected)),
		logging.Float64("total_s", total))
	return selected
}

// candidates merges runs of consecutive buckets above the score floor into
// windows bounded by the segment length limits.
func (s *Selector) candidates(tl *score.Timeline) []Segment {
	var out []Segment
	i := 0
	for i < len(tl.Buckets) {
		if tl.Buckets[i].Score < s.cfg.MinScore || tl.Buckets[i].Score <= 0 {
			i++
			continue
		}
		runStart := i
		for i < len(tl.Buckets) && tl.Buckets[i].Score >= s.cfg.MinScore && tl.Buckets[i].Score > 0 {
			i++
		}
		runEnd := i - 1
		out = append(out, s.windowsForRun(tl, runStart, runEnd)...)
	}
	return out
}

// windowsForRun chops one above-floor run into candidate windows. Short runs
// are padded out to the minimum length with neighboring buckets; long runs
// are tiled into max-length windows so a sustained peak can contribute more
// than one segment.
func (s *Selector) windowsForRun(tl *score.Timeline, runStart, runEnd int) []Segment {
	bucketS := tl.BucketS
	minBuckets := int(math.Ceil(s.cfg.MinSegLenS / bucketS))
	if minBuckets < 1 {
		minBuckets = 1
	}
	maxBuckets := int(math.Floor(s.cfg.MaxSegLenS / bucketS))
	if maxBuckets < minBuckets {
		maxBuckets = minBuckets
	}

	var out []Segment
	for start := runStart; start <= runEnd; start += maxBuckets {
		from, to := start, start+maxBuckets-1
		if to > runEnd {
			to = runEnd
		}
		from, to = s.pad(tl, from, to, minBuckets)
		out = append(out, segmentOf(tl, from, to))
	}
	return out
}

// pad widens [from, to] to the minimum bucket count, preferring the higher
// scoring neighbor at each step and staying inside the timeline.
func (s *Selector) pad(tl *score.Timeline, from, to, minBuckets int) (int, int) {
	for to-from+1 < minBuckets {
		left, right := from-1, to+1
		switch {
		case left < 0 && right >= len(tl.Buckets):
			return from, to
		case left < 0:
			to = right
		case right >= len(tl.Buckets):
			from = left
		case tl.Buckets[left].Score >= tl.Buckets[right].Score:
			from = left
		default:
			to = right
		}
	}
	return from, to
}

// bestEffortSegment builds one minimum-length segment centered on the highest
// scoring bucket, the fallback when the floor filters everything out.
func (s *Selector) bestEffortSegment(tl *score.Timeline) Segment {
	best := 0
	for i := range tl.Buckets {
		if tl.Buckets[i].Score > tl.Buckets[best].Score {
			best = i
		}
	}
	minBuckets := int(math.Ceil(s.cfg.MinSegLenS / tl.BucketS))
	if minBuckets < 1 {
		minBuckets = 1
	}
	from, to := s.pad(tl, best, best, minBuckets)
	return segmentOf(tl, from, to)
}

// trimToFit shortens a candidate to the remaining duration budget, dropping
// it when the result would fall under the minimum segment length.
func (s *Selector) trimToFit(seg Segment, budget float64) (Segment, bool) {
	if budget < s.cfg.MinSegLenS {
		return Segment{}, false
	}
	seg.End = seg.Start + budget
	return seg, true
}

func overlapsOrTooClose(selected []Segment, cand Segment, minGap float64) bool {
	for _, s := range selected {
		if cand.Start < s.End+minGap && s.Start < cand.End+minGap {
			return true
		}
	}
	return false
}
