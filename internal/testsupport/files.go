package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile drops a stand-in footage file of the requested size at path. The
// content opens with an mp4-style ftyp box so the file looks video-shaped
// without being decodable; tests that read it for real go through stubbed
// ffprobe/ffmpeg binaries. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	header := []byte("\x00\x00\x00\x18ftypisom")
	if int64(len(header)) > size {
		header = header[:size]
	}
	if _, err := f.Write(header); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	pad := bytes.Repeat([]byte{0xa7}, 4096)
	for remaining := size - int64(len(header)); remaining > 0; {
		n := int64(len(pad))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(pad[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}
