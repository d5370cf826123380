package media_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/media"
	"reelsmith/internal/services"
)

func writeStubFFprobe(t *testing.T, payload any, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\n"
	if exitCode != 0 {
		script += "echo 'Invalid data found when processing input' >&2\nexit 1\n"
	} else {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		script += "cat <<'EOF'\n" + string(raw) + "\nEOF\n"
	}
	path := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestOpenParsesProbeOutput(t *testing.T) {
	stub := writeStubFFprobe(t, map[string]any{
		"streams": []map[string]any{
			{"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001"},
			{"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2},
		},
		"format": map[string]any{"filename": "event.mp4", "nb_streams": 2, "duration": "63.5"},
	}, 0)

	src, err := media.Open(context.Background(), stub, "/videos/camb__reception.mp4")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if src.DurationSeconds != 63.5 {
		t.Fatalf("unexpected duration: %v", src.DurationSeconds)
	}
	if src.Width != 1920 || src.Height != 1080 {
		t.Fatalf("unexpected resolution: %dx%d", src.Width, src.Height)
	}
	if src.FrameRate < 29.9 || src.FrameRate > 30.0 {
		t.Fatalf("unexpected frame rate: %v", src.FrameRate)
	}
	if !src.HasAudio() || src.AudioSampleRate != 48000 {
		t.Fatalf("unexpected audio: %+v", src)
	}
	if src.CameraID != "camb" {
		t.Fatalf("unexpected camera id: %q", src.CameraID)
	}
}

func TestOpenUnreadableSource(t *testing.T) {
	stub := writeStubFFprobe(t, nil, 1)
	_, err := media.Open(context.Background(), stub, "/videos/corrupt.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrSourceUnreadable) {
		t.Fatalf("expected source unreadable, got %v", err)
	}
}

func TestOpenRejectsAudioOnlyContainer(t *testing.T) {
	stub := writeStubFFprobe(t, map[string]any{
		"streams": []map[string]any{
			{"index": 0, "codec_type": "audio", "codec_name": "mp3", "sample_rate": "44100", "channels": 2},
		},
		"format": map[string]any{"duration": "10.0"},
	}, 0)

	_, err := media.Open(context.Background(), stub, "/videos/podcast.mp3")
	if !errors.Is(err, services.ErrSourceUnreadable) {
		t.Fatalf("expected source unreadable for audio-only input, got %v", err)
	}
}

func TestCameraIDForPath(t *testing.T) {
	cases := []struct {
		path, want string
	}{
		{"/v/CamA__ceremony.mp4", "cama"},
		{"/v/reception.mp4", "cam0"},
		{"/v/cam2__speeches_part1.mkv", "cam2"},
		{"__odd.mp4", "cam0"},
	}
	for _, tc := range cases {
		if got := media.CameraIDForPath(tc.path); got != tc.want {
			t.Fatalf("CameraIDForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestIsVideoPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"cam1__gala.mp4", true},
		{"CAM1__GALA.MKV", true},
		{"/ingest/clip.webm", true},
		{"clip.mp4.part", false},
		{"clip.mp4.tmp", false},
		{".hidden.mp4", false},
		{"notes.txt", false},
	}
	for _, tc := range cases {
		if got := media.IsVideoPath(tc.path); got != tc.want {
			t.Errorf("IsVideoPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
