package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"reelsmith/internal/media"
	"reelsmith/internal/queue"
)

func enqueueVideo(ctx context.Context, store *queue.Store, sourcePath string) (*queue.Item, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, fmt.Errorf("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	if !media.IsVideoPath(absPath) {
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(absPath))
	}
	return store.NewVideo(ctx, absPath)
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(cmd *cobra.Command, payload any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// colorizeStatus tints terminal output for at-a-glance queue scanning.
func colorizeStatus(status queue.Status) string {
	if !stdoutIsTerminal() {
		return string(status)
	}
	switch status {
	case queue.StatusCompleted:
		return ansiGreen + string(status) + ansiReset
	case queue.StatusFailed:
		return ansiRed + string(status) + ansiReset
	case queue.StatusReview:
		return ansiYellow + string(status) + ansiReset
	default:
		return string(status)
	}
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64) + "s"
}

func truncateText(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
