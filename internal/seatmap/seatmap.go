// Package seatmap loads the venue's seat layout and answers nearest-seat
// queries in normalized frame coordinates.
package seatmap

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"reelsmith/internal/services"
)

// Seat is a named position in one camera's frame, coordinates normalized to
// [0, 1].
type Seat struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Lookup answers nearest-seat queries. The zero-value Map satisfies it and
// never matches, which is the behavior for events without a seat layout.
type Lookup interface {
	// Nearest returns the seat closest to (x, y) on the given camera, or
	// ok=false when no seat lies within tolerance.
	Nearest(cameraID string, x, y, tolerance float64) (Seat, bool)
}

// Map is a per-camera seat layout loaded from a JSON file.
type Map struct {
	Cameras map[string][]Seat `json:"cameras"`
}

// Load reads a seat map file. A missing path is not an error: it returns an
// empty map, since seat assignment is optional.
func Load(path string) (*Map, error) {
	if path == "" {
		return &Map{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Map{}, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "seatmap", "load", path, err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "seatmap", "parse", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	for camera := range m.Cameras {
		lower := strings.ToLower(camera)
		if lower != camera {
			m.Cameras[lower] = m.Cameras[camera]
			delete(m.Cameras, camera)
		}
	}
	return &m, nil
}

func (m *Map) validate() error {
	for camera, seats := range m.Cameras {
		labels := make(map[string]struct{}, len(seats))
		for _, seat := range seats {
			if seat.Label == "" {
				return services.Wrap(services.ErrConfiguration, "seatmap", "validate",
					fmt.Sprintf("camera %q has a seat without a label", camera), nil)
			}
			if _, dup := labels[seat.Label]; dup {
				return services.Wrap(services.ErrConfiguration, "seatmap", "validate",
					fmt.Sprintf("camera %q repeats seat %q", camera, seat.Label), nil)
			}
			labels[seat.Label] = struct{}{}
			if seat.X < 0 || seat.X > 1 || seat.Y < 0 || seat.Y > 1 {
				return services.Wrap(services.ErrConfiguration, "seatmap", "validate",
					fmt.Sprintf("seat %q on camera %q outside [0,1]", seat.Label, camera), nil)
			}
		}
	}
	return nil
}

// Nearest implements Lookup. Equidistant seats resolve by label so repeated
// runs agree.
func (m *Map) Nearest(cameraID string, x, y, tolerance float64) (Seat, bool) {
	seats := m.Cameras[strings.ToLower(cameraID)]
	if len(seats) == 0 {
		return Seat{}, false
	}
	sorted := make([]Seat, len(seats))
	copy(sorted, seats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })

	best := Seat{}
	bestDist := math.Inf(1)
	for _, seat := range sorted {
		d := math.Hypot(seat.X-x, seat.Y-y)
		if d < bestDist {
			best = seat
			bestDist = d
		}
	}
	if bestDist > tolerance {
		return Seat{}, false
	}
	return best, true
}
