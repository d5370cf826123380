package sampler

import "math"

// Frame is a single analysis frame extracted from a video source. Pixels hold
// 8-bit grayscale values at the fixed analysis resolution, row-major.
type Frame struct {
	Timestamp float64
	Index     int
	Width     int
	Height    int
	Pixels    []byte
	CameraID  string
}

// AudioWindow is a fixed-length mono PCM slice of the source audio track.
type AudioWindow struct {
	Timestamp  float64
	Duration   float64
	SampleRate int
	Samples    []int16
	RMS        float64
	CameraID   string
}

// MeanAbsDiff returns the mean absolute pixel difference between two frames of
// identical dimensions, in [0, 255]. Mismatched dimensions yield the maximum
// difference so callers treat them as full motion.
func MeanAbsDiff(a, b Frame) float64 {
	if len(a.Pixels) == 0 || len(a.Pixels) != len(b.Pixels) {
		return 255
	}
	var total uint64
	for i := range a.Pixels {
		d := int(a.Pixels[i]) - int(b.Pixels[i])
		if d < 0 {
			d = -d
		}
		total += uint64(d)
	}
	return float64(total) / float64(len(a.Pixels))
}

func rmsOf(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
