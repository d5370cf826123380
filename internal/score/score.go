package score

import (
	"log/slog"
	"math"
	"sort"

	"reelsmith/internal/cluster"
	"reelsmith/internal/config"
	"reelsmith/internal/detect"
	"reelsmith/internal/logging"
)

// EnergySample is one audio window reduced to its RMS level.
type EnergySample struct {
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration"`
	RMS       float64 `json:"rms"`
}

// Inputs carries everything the scorer fuses into one interest curve.
type Inputs struct {
	Duration    float64
	Faces       []detect.Detection
	AudioEvents []detect.Detection
	Energy      []EnergySample
	Guests      []*cluster.Guest
}

// Bucket is one fixed-width slice of the timeline with its fused score and
// the normalized component signals that produced it.
type Bucket struct {
	Start    float64  `json:"start"`
	Duration float64  `json:"duration"`
	Score    float64  `json:"score"`
	Face     float64  `json:"face"`
	Audio    float64  `json:"audio"`
	Novelty  float64  `json:"novelty"`
	Guests   []string `json:"guests,omitempty"`
}

// End returns the bucket's end timestamp.
func (b Bucket) End() float64 { return b.Start + b.Duration }

// Timeline is the dense interest curve over one video. Buckets are
// contiguous, cover [0, duration), and buckets without any signal score 0.
type Timeline struct {
	BucketS float64  `json:"bucket_s"`
	Buckets []Bucket `json:"buckets"`
}

// Scorer fuses face density, audio energy and events, and guest novelty into
// a per-bucket score. Each signal is normalized over the full timeline before
// the weighted sum, so scores are comparable across videos of any length.
type Scorer struct {
	cfg    config.Scoring
	logger *slog.Logger
}

// New returns a Scorer with the given configuration.
func New(cfg config.Scoring, logger *slog.Logger) *Scorer {
	return &Scorer{cfg: cfg, logger: logging.NewComponentLogger(logger, "score")}
}

// Score builds the interest curve for one video.
func (s *Scorer) Score(in Inputs) *Timeline {
	bucketS := s.cfg.BucketS
	if bucketS <= 0 {
		bucketS = 1
	}
	n := int(math.Ceil(in.Duration / bucketS))
	if n < 0 {
		n = 0
	}
	tl := &Timeline{BucketS: bucketS, Buckets: make([]Bucket, n)}
	if n == 0 {
		return tl
	}
	for i := range tl.Buckets {
		tl.Buckets[i].Start = float64(i) * bucketS
		tl.Buckets[i].Duration = bucketS
	}
	last := &tl.Buckets[n-1]
	if end := last.Start + last.Duration; end > in.Duration {
		last.Duration = in.Duration - last.Start
	}

	face := s.faceSignal(tl, in.Faces)
	audio := s.audioSignal(tl, in.Energy, in.AudioEvents)
	novelty := s.noveltySignal(tl, in.Guests)

	s.normalize(face)
	s.normalize(audio)
	s.normalize(novelty)

	for i := range tl.Buckets {
		b := &tl.Buckets[i]
		b.Face = face[i]
		b.Audio = audio[i]
		b.Novelty = novelty[i]
		b.Score = s.cfg.FaceWeight*face[i] + s.cfg.AudioWeight*audio[i] + s.cfg.NoveltyWeight*novelty[i]
	}
	s.logger.Debug("timeline scored",
		logging.Int("buckets", n),
		logging.Float64("duration", in.Duration))
	return tl
}

func (tl *Timeline) bucketIndex(ts float64) int {
	i := int(ts / tl.BucketS)
	if i < 0 || i >= len(tl.Buckets) {
		return -1
	}
	return i
}

// faceSignal counts simultaneous faces and their on-screen area per bucket.
func (s *Scorer) faceSignal(tl *Timeline, faces []detect.Detection) []float64 {
	raw := make([]float64, len(tl.Buckets))
	for _, d := range faces {
		i := tl.bucketIndex(d.Timestamp)
		if i < 0 {
			continue
		}
		area := 0.0
		if d.Region != nil {
			area = d.Region.Area()
		}
		raw[i] += 1 + area
	}
	return raw
}

// audioSignal blends mean RMS level with detected event confidence.
func (s *Scorer) audioSignal(tl *Timeline, energy []EnergySample, events []detect.Detection) []float64 {
	raw := make([]float64, len(tl.Buckets))
	counts := make([]int, len(tl.Buckets))
	for _, e := range energy {
		i := tl.bucketIndex(e.Timestamp)
		if i < 0 {
			continue
		}
		raw[i] += e.RMS
		counts[i]++
	}
	for i := range raw {
		if counts[i] > 1 {
			raw[i] /= float64(counts[i])
		}
	}
	for _, d := range events {
		i := tl.bucketIndex(d.Timestamp)
		if i < 0 {
			continue
		}
		raw[i] += d.Confidence
	}
	return raw
}

// noveltySignal rewards buckets featuring guests with little prior exposure,
// walking the timeline once and accumulating screen time per guest.
func (s *Scorer) noveltySignal(tl *Timeline, guests []*cluster.Guest) []float64 {
	raw := make([]float64, len(tl.Buckets))
	if len(guests) == 0 {
		return raw
	}
	exposure := make(map[string]float64, len(guests))
	for i := range tl.Buckets {
		b := &tl.Buckets[i]
		var present []string
		for _, g := range guests {
			if guestPresent(g, b.Start, b.End()) {
				present = append(present, g.ID)
			}
		}
		if len(present) == 0 {
			continue
		}
		b.Guests = present
		var sum float64
		for _, id := range present {
			sum += 1 / (1 + exposure[id])
		}
		raw[i] = sum / float64(len(present))
		for _, id := range present {
			exposure[id] += b.Duration
		}
	}
	return raw
}

func guestPresent(g *cluster.Guest, start, end float64) bool {
	for _, tr := range g.Tracks {
		if tr.Start < end && start < tr.End {
			return true
		}
	}
	return false
}

// normalize scales values into [0,1] in place. Min-max uses the full range;
// percentile clamps at the 95th percentile so one outlier spike cannot
// flatten the rest of the curve. All-zero input stays zero.
func (s *Scorer) normalize(values []float64) {
	if len(values) == 0 {
		return
	}
	ceiling := 0.0
	switch s.cfg.Normalization {
	case "percentile":
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		ceiling = sorted[(len(sorted)-1)*95/100]
		if ceiling == 0 {
			ceiling = sorted[len(sorted)-1]
		}
	default:
		for _, v := range values {
			if v > ceiling {
				ceiling = v
			}
		}
	}
	if ceiling == 0 {
		return
	}
	for i, v := range values {
		scaled := v / ceiling
		if scaled > 1 {
			scaled = 1
		}
		values[i] = scaled
	}
}
