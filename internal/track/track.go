package track

import (
	"math"

	"reelsmith/internal/detect"
)

// Track is a sequence of face detections judged to be the same person seen
// continuously on one camera. Detections are time-ordered and gaps never
// exceed the occlusion tolerance used during building.
type Track struct {
	ID         int                `json:"id"`
	CameraID   string             `json:"camera_id"`
	Start      float64            `json:"start"`
	End        float64            `json:"end"`
	Detections []detect.Detection `json:"detections"`
	// MeanEmbedding is the L2-normalized average of the detection embeddings,
	// nil when no detection carried one.
	MeanEmbedding []float32 `json:"mean_embedding,omitempty"`
}

// Duration returns the track's span in seconds.
func (t *Track) Duration() float64 { return t.End - t.Start }

// MeanRegion averages the detection regions, giving the track's typical
// on-screen position for seat assignment.
func (t *Track) MeanRegion() detect.Region {
	var sum detect.Region
	n := 0
	for _, d := range t.Detections {
		if d.Region == nil {
			continue
		}
		sum.X += d.Region.X
		sum.Y += d.Region.Y
		sum.W += d.Region.W
		sum.H += d.Region.H
		n++
	}
	if n == 0 {
		return detect.Region{}
	}
	f := float64(n)
	return detect.Region{X: sum.X / f, Y: sum.Y / f, W: sum.W / f, H: sum.H / f}
}

func (t *Track) finish() {
	if len(t.Detections) == 0 {
		return
	}
	t.Start = t.Detections[0].Timestamp
	t.End = t.Detections[len(t.Detections)-1].Timestamp
	t.MeanEmbedding = meanEmbedding(t.Detections)
}

func meanEmbedding(dets []detect.Detection) []float32 {
	var sum []float64
	n := 0
	for _, d := range dets {
		if len(d.Embedding) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(d.Embedding))
		}
		if len(d.Embedding) != len(sum) {
			continue
		}
		for i, v := range d.Embedding {
			sum[i] += float64(v)
		}
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]float32, len(sum))
	var norm float64
	for i, v := range sum {
		avg := v / float64(n)
		out[i] = float32(avg)
		norm += avg * avg
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range out {
			out[i] = float32(float64(out[i]) / norm)
		}
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between two embeddings,
// zero when either is empty or the dimensions disagree.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
