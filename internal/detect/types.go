package detect

// Kind discriminates detection records.
type Kind string

const (
	KindFace       Kind = "face"
	KindAudioEvent Kind = "audio_event"
)

// Region is a normalized bounding region inside a frame; all fields are in
// [0, 1] relative to frame dimensions.
type Region struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the normalized region area.
func (r Region) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Center returns the normalized center point of the region.
func (r Region) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// IoU returns the intersection-over-union of two regions, in [0, 1].
func (r Region) IoU(o Region) float64 {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.W, o.X+o.W)
	y2 := min(r.Y+r.H, o.Y+o.H)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a single timestamped observation from a backend. Immutable
// once created.
type Detection struct {
	Timestamp  float64   `json:"timestamp"`
	Kind       Kind      `json:"kind"`
	Region     *Region   `json:"region,omitempty"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Label      string    `json:"label,omitempty"`
	CameraID   string    `json:"camera_id"`
}
