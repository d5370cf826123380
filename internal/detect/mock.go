package detect

import (
	"context"
	"sync"

	"reelsmith/internal/sampler"
)

// MockBackend is an in-memory backend used in tests and dry runs. Detections
// are scripted per timestamp; failures can be injected per call to exercise
// retry and degradation paths.
type MockBackend struct {
	mu sync.Mutex

	faceScript  map[int][]Detection // keyed by frame index
	audioScript map[int][]Detection // keyed by window ordinal
	failFaces   func(frame sampler.Frame) error
	failAudio   func(window sampler.AudioWindow) error

	FaceCalls  int
	AudioCalls int
}

// NewMockBackend returns an empty mock that reports zero detections.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		faceScript:  make(map[int][]Detection),
		audioScript: make(map[int][]Detection),
	}
}

func (m *MockBackend) Name() string { return "mock" }

// ScriptFaces registers detections returned for the frame with the given index.
func (m *MockBackend) ScriptFaces(frameIndex int, dets ...Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faceScript[frameIndex] = dets
}

// ScriptAudio registers detections returned for the nth audio window.
func (m *MockBackend) ScriptAudio(windowIndex int, dets ...Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioScript[windowIndex] = dets
}

// FailFacesWhen injects an error for frames matching fn.
func (m *MockBackend) FailFacesWhen(fn func(frame sampler.Frame) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFaces = fn
}

// FailAudioWhen injects an error for windows matching fn.
func (m *MockBackend) FailAudioWhen(fn func(window sampler.AudioWindow) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAudio = fn
}

func (m *MockBackend) DetectFaces(_ context.Context, frame sampler.Frame) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FaceCalls++
	if m.failFaces != nil {
		if err := m.failFaces(frame); err != nil {
			return nil, err
		}
	}
	dets := m.faceScript[frame.Index]
	out := make([]Detection, len(dets))
	for i, d := range dets {
		d.Timestamp = frame.Timestamp
		d.Kind = KindFace
		d.CameraID = frame.CameraID
		out[i] = d
	}
	return out, nil
}

func (m *MockBackend) DetectAudioEvents(_ context.Context, window sampler.AudioWindow) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioCalls++
	if m.failAudio != nil {
		if err := m.failAudio(window); err != nil {
			return nil, err
		}
	}
	idx := int(window.Timestamp / window.Duration)
	if window.Duration <= 0 {
		idx = 0
	}
	dets := m.audioScript[idx]
	out := make([]Detection, len(dets))
	for i, d := range dets {
		d.Timestamp = window.Timestamp
		d.Kind = KindAudioEvent
		d.CameraID = window.CameraID
		out[i] = d
	}
	return out, nil
}
