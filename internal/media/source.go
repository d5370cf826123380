package media

import (
	"context"
	"path/filepath"
	"strings"

	"reelsmith/internal/services"
)

// Source is an immutable handle to an opened video file. Created at ingestion,
// read-only thereafter.
type Source struct {
	Path            string
	CameraID        string
	DurationSeconds float64
	FrameRate       float64
	Width           int
	Height          int
	AudioSampleRate int
	AudioChannels   int
}

// Open inspects the container at path and returns a Source. An unreadable or
// videoless container yields a source-unreadable error.
func Open(ctx context.Context, ffprobeBinary, path string) (*Source, error) {
	result, err := Inspect(ctx, ffprobeBinary, path)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnreadable, "media", "open", path, err)
	}
	video, ok := result.PrimaryVideoStream()
	if !ok {
		return nil, services.Wrap(services.ErrSourceUnreadable, "media", "open", path+": no video stream", nil)
	}

	src := &Source{
		Path:            path,
		CameraID:        CameraIDForPath(path),
		DurationSeconds: result.DurationSeconds(),
		FrameRate:       video.FrameRate(),
		Width:           video.Width,
		Height:          video.Height,
	}
	if audio, ok := result.PrimaryAudioStream(); ok {
		src.AudioSampleRate = audio.SampleRateHz()
		src.AudioChannels = audio.Channels
	}
	return src, nil
}

// HasAudio reports whether the container carries a usable audio stream.
func (s *Source) HasAudio() bool {
	return s != nil && s.AudioSampleRate > 0
}

// videoExtensions lists the container formats accepted for ingest.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
}

// IsVideoPath reports whether a path looks like an ingestible video file.
// Hidden files and in-progress transfer suffixes are rejected.
func IsVideoPath(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// CameraIDForPath derives a stable camera identifier from a file name.
// Multi-camera shoots name files "<camera>__<anything>.<ext>"; files without
// the separator all map to the default camera.
func CameraIDForPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if idx := strings.Index(base, "__"); idx > 0 {
		return strings.ToLower(base[:idx])
	}
	return "cam0"
}
