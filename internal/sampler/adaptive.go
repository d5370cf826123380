package sampler

import "reelsmith/internal/config"

// emitDecider throttles decoded frames down to the policy's effective rate.
// Fixed policy passes everything through (the decoder already runs at the
// configured rate). Adaptive policy decodes at max_fps and decimates quiet
// stretches to min_fps: a frame is emitted when the pixel difference against
// the last emitted frame crosses motion_threshold, or when enough time has
// passed that even a still scene is due for a sample.
type emitDecider struct {
	adaptive  bool
	threshold float64
	quietGap  float64 // seconds between emissions when below threshold
	last      Frame
	lastEmit  float64
	emitted   bool
}

func newEmitDecider(cfg config.Sampling) *emitDecider {
	d := &emitDecider{
		adaptive:  cfg.Policy == "adaptive",
		threshold: cfg.MotionThreshold,
	}
	if cfg.MinFPS > 0 {
		d.quietGap = 1.0 / cfg.MinFPS
	}
	return d
}

func (d *emitDecider) shouldEmit(frame Frame) bool {
	if !d.adaptive {
		return true
	}
	if !d.emitted {
		d.markEmitted(frame)
		return true
	}
	diff := MeanAbsDiff(frame, d.last)
	due := d.quietGap > 0 && frame.Timestamp-d.lastEmit >= d.quietGap
	if diff >= d.threshold || due {
		d.markEmitted(frame)
		return true
	}
	return false
}

func (d *emitDecider) markEmitted(frame Frame) {
	d.last = frame
	d.lastEmit = frame.Timestamp
	d.emitted = true
}
