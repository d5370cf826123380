package logging_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "reelsmith.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("analysis complete", logging.Int("segments", 4))

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, "analysis complete") {
		t.Fatalf("missing message in %q", out)
	}
	if !strings.Contains(out, "segments=4") {
		t.Fatalf("missing attr in %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")

	raw, _ := os.ReadFile(logPath)
	if strings.Contains(string(raw), "hidden") {
		t.Fatalf("debug record leaked: %q", string(raw))
	}
	if !strings.Contains(string(raw), "shown") {
		t.Fatalf("info record missing: %q", string(raw))
	}
}

func TestWithContextCarriesItemAndStage(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "ctx.log")
	base, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := services.WithItemID(context.Background(), 7)
	ctx = services.WithStage(ctx, "analyze")
	logging.WithContext(ctx, base).Info("stage started")

	raw, _ := os.ReadFile(logPath)
	out := string(raw)
	for _, want := range []string{`"item_id":7`, `"stage":"analyze"`, `"msg":"stage started"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger must not be enabled")
	}
}

func TestFormatSubject(t *testing.T) {
	cases := []struct {
		item, stage, want string
	}{
		{"3", "cluster", "video #3 (cluster)"},
		{"3", "", "video #3"},
		{"", "plan", "plan"},
		{"", "", ""},
	}
	for _, tc := range cases {
		if got := logging.FormatSubject(tc.item, tc.stage); got != tc.want {
			t.Fatalf("FormatSubject(%q, %q) = %q, want %q", tc.item, tc.stage, got, tc.want)
		}
	}
}
