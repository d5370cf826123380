package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelsmith/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDetectionBackend, "analyze", "detect faces", "frame 42", base)
	if !errors.Is(err, services.ErrDetectionBackend) {
		t.Fatalf("expected detection backend marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
	for _, want := range []string{"analyze", "detect faces", "frame 42"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "plan", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{services.Wrap(services.ErrLogicInvariant, "cluster", "merge", "same camera overlap", nil), true},
		{services.Wrap(services.ErrConfiguration, "config", "", "min exceeds max", nil), true},
		{services.Wrap(services.ErrDetectionBackend, "analyze", "", "", nil), false},
		{services.Wrap(services.ErrUnsupportedCodec, "sample", "", "", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.IsFatal(tc.err); got != tc.fatal {
			t.Fatalf("IsFatal(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}
