package track

import (
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/detect"
	"reelsmith/internal/logging"
)

func trackingConfig() config.Tracking {
	return config.Tracking{
		OcclusionToleranceS: 1.5,
		MinTrackDurationS:   1.0,
		MaxMatchCost:        0.8,
		IoUWeight:           0.6,
		EmbeddingWeight:     0.4,
	}
}

func faceAt(ts, x, y float64, conf float64, emb []float32) detect.Detection {
	return detect.Detection{
		Timestamp:  ts,
		Kind:       detect.KindFace,
		Region:     &detect.Region{X: x, Y: y, W: 0.1, H: 0.15},
		Confidence: conf,
		Embedding:  emb,
		CameraID:   "cam0",
	}
}

func TestBuildSingleContinuousTrack(t *testing.T) {
	emb := []float32{1, 0, 0}
	var dets []detect.Detection
	for i := 0; i < 6; i++ {
		dets = append(dets, faceAt(float64(i)*0.5, 0.3+float64(i)*0.005, 0.4, 0.9, emb))
	}

	tracks := NewBuilder(trackingConfig(), logging.NewNop()).Build(dets)
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	tr := tracks[0]
	if len(tr.Detections) != 6 {
		t.Fatalf("expected 6 detections in track, got %d", len(tr.Detections))
	}
	if tr.Start != 0 || tr.End != 2.5 {
		t.Fatalf("unexpected track span [%g, %g]", tr.Start, tr.End)
	}
	for i := 1; i < len(tr.Detections); i++ {
		if tr.Detections[i].Timestamp <= tr.Detections[i-1].Timestamp {
			t.Fatalf("track detections not time-ordered")
		}
	}
}

func TestBuildSurvivesOcclusionWithinTolerance(t *testing.T) {
	emb := []float32{0, 1, 0}
	dets := []detect.Detection{
		faceAt(0.0, 0.3, 0.4, 0.9, emb),
		faceAt(0.5, 0.3, 0.4, 0.9, emb),
		// 1.5s gap, exactly at the tolerance boundary.
		faceAt(2.0, 0.31, 0.4, 0.9, emb),
		faceAt(2.5, 0.31, 0.4, 0.9, emb),
	}

	tracks := NewBuilder(trackingConfig(), logging.NewNop()).Build(dets)
	if len(tracks) != 1 {
		t.Fatalf("expected occlusion to be bridged into 1 track, got %d", len(tracks))
	}
}

func TestBuildSplitsTrackAfterLongAbsence(t *testing.T) {
	emb := []float32{0, 1, 0}
	dets := []detect.Detection{
		faceAt(0.0, 0.3, 0.4, 0.9, emb),
		faceAt(0.5, 0.3, 0.4, 0.9, emb),
		faceAt(1.0, 0.3, 0.4, 0.9, emb),
		// 3s absence exceeds the 1.5s tolerance.
		faceAt(4.0, 0.3, 0.4, 0.9, emb),
		faceAt(4.5, 0.3, 0.4, 0.9, emb),
		faceAt(5.0, 0.3, 0.4, 0.9, emb),
	}

	tracks := NewBuilder(trackingConfig(), logging.NewNop()).Build(dets)
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks across the absence, got %d", len(tracks))
	}
	if tracks[0].End >= tracks[1].Start {
		t.Fatalf("tracks overlap: %g >= %g", tracks[0].End, tracks[1].Start)
	}
}

func TestBuildKeepsTwoFacesApart(t *testing.T) {
	left := []float32{1, 0, 0}
	right := []float32{0, 0, 1}
	var dets []detect.Detection
	for i := 0; i < 5; i++ {
		ts := float64(i) * 0.5
		dets = append(dets,
			faceAt(ts, 0.2, 0.4, 0.9, left),
			faceAt(ts, 0.7, 0.4, 0.9, right),
		)
	}

	tracks := NewBuilder(trackingConfig(), logging.NewNop()).Build(dets)
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks for 2 faces, got %d", len(tracks))
	}
	for _, tr := range tracks {
		x := tr.MeanRegion().X
		for _, d := range tr.Detections {
			if d.Region.X-x > 0.1 || x-d.Region.X > 0.1 {
				t.Fatalf("track mixed detections from both faces")
			}
		}
	}
}

func TestBuildDropsShortBlips(t *testing.T) {
	dets := []detect.Detection{
		faceAt(0.0, 0.5, 0.4, 0.9, nil),
		faceAt(0.5, 0.5, 0.4, 0.9, nil),
	}

	tracks := NewBuilder(trackingConfig(), logging.NewNop()).Build(dets)
	if len(tracks) != 0 {
		t.Fatalf("expected sub-minimum track to be dropped, got %d", len(tracks))
	}
}

func TestBuildNeverJoinsAcrossCameras(t *testing.T) {
	var dets []detect.Detection
	for i := 0; i < 4; i++ {
		ts := float64(i) * 0.5
		a := faceAt(ts, 0.5, 0.4, 0.9, nil)
		b := faceAt(ts, 0.5, 0.4, 0.9, nil)
		b.CameraID = "cam1"
		dets = append(dets, a, b)
	}

	tracks := NewBuilder(trackingConfig(), logging.NewNop()).Build(dets)
	if len(tracks) != 2 {
		t.Fatalf("expected one track per camera, got %d", len(tracks))
	}
	if tracks[0].CameraID == tracks[1].CameraID {
		t.Fatalf("tracks share a camera: %q", tracks[0].CameraID)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors: got %g", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got > 0.001 {
		t.Fatalf("orthogonal vectors: got %g", got)
	}
	if got := CosineSimilarity(nil, []float32{1}); got != 0 {
		t.Fatalf("empty vector: got %g", got)
	}
}
