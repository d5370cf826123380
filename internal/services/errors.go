package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnreadable marks media containers that cannot be opened at all.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrUnsupportedCodec marks demux failures encountered mid-stream. Data
	// sampled before the failure point is still delivered to callers.
	ErrUnsupportedCodec = errors.New("unsupported codec")
	// ErrDetectionBackend marks transient detection backend failures. Unit-level
	// occurrences are retried and then degraded to zero detections.
	ErrDetectionBackend = errors.New("detection backend error")
	// ErrConfiguration marks invalid parameter combinations. These fail fast
	// before any processing starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrLogicInvariant marks internal invariant violations. Always fatal;
	// indicates a bug rather than bad input.
	ErrLogicInvariant = errors.New("logic invariant violation")
	// ErrExternalTool marks failures of external collaborators (ffmpeg, ffprobe, renderer).
	ErrExternalTool = errors.New("external tool error")
	// ErrNotFound marks missing queue items, plans, or seat maps.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks retriable failures with no more specific classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error must abort the whole pipeline run rather
// than degrade to partial results.
func IsFatal(err error) bool {
	return errors.Is(err, ErrLogicInvariant) || errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
