package cluster

import (
	"fmt"
	"log/slog"
	"sort"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/seatmap"
	"reelsmith/internal/services"
	"reelsmith/internal/track"
)

// Guest is one distinct person assembled from tracks across cameras.
type Guest struct {
	ID     string         `json:"id"`
	Tracks []*track.Track `json:"tracks"`
	// Seat is nil when no seat lies within tolerance of the guest's position.
	Seat      *seatmap.Seat `json:"seat,omitempty"`
	FirstSeen float64       `json:"first_seen"`
}

// ScreenTime sums the duration of the guest's tracks.
func (g *Guest) ScreenTime() float64 {
	var total float64
	for _, tr := range g.Tracks {
		total += tr.Duration()
	}
	return total
}

// Cameras returns the sorted set of cameras the guest appears on.
func (g *Guest) Cameras() []string {
	seen := make(map[string]struct{})
	for _, tr := range g.Tracks {
		seen[tr.CameraID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for camera := range seen {
		out = append(out, camera)
	}
	sort.Strings(out)
	return out
}

// Clusterer merges tracks into guest identities by embedding similarity and
// assigns each guest a seat from the venue layout.
type Clusterer struct {
	cfg    config.Clustering
	logger *slog.Logger
}

// New returns a Clusterer with the given configuration.
func New(cfg config.Clustering, logger *slog.Logger) *Clusterer {
	return &Clusterer{cfg: cfg, logger: logging.NewComponentLogger(logger, "cluster")}
}

// Cluster groups tracks into guests. Tracks must be ordered by start time.
// Two tracks that overlap in time on the same camera are necessarily two
// different people, so they never share a guest. Guest ids follow first
// appearance: guest-1 is the earliest seen.
func (c *Clusterer) Cluster(tracks []*track.Track, seats seatmap.Lookup) ([]*Guest, error) {
	var guests []*Guest
	for _, tr := range tracks {
		best := -1
		bestSim := -1.0
		for gi, g := range guests {
			if conflictsSameCamera(g, tr) {
				continue
			}
			// First guest wins a similarity tie; guests are in creation order.
			if sim := similarity(g, tr); sim > bestSim {
				best = gi
				bestSim = sim
			}
		}
		if best >= 0 && bestSim >= c.cfg.SimilarityThreshold {
			guests[best].Tracks = append(guests[best].Tracks, tr)
			continue
		}
		guests = append(guests, &Guest{Tracks: []*track.Track{tr}, FirstSeen: tr.Start})
	}

	sort.SliceStable(guests, func(i, j int) bool { return guests[i].FirstSeen < guests[j].FirstSeen })
	for i, g := range guests {
		g.ID = fmt.Sprintf("guest-%d", i+1)
		c.assignSeat(g, seats)
	}
	if err := validate(guests); err != nil {
		return nil, err
	}
	c.logger.Debug("guests clustered",
		logging.Int("tracks", len(tracks)),
		logging.Int("guests", len(guests)))
	return guests, nil
}

// similarity compares a track against a guest as the maximum cosine
// similarity to any member, so a guest whose appearance drifts over the event
// still attracts its later tracks.
func similarity(g *Guest, tr *track.Track) float64 {
	if len(tr.MeanEmbedding) == 0 {
		return -1
	}
	best := -1.0
	for _, member := range g.Tracks {
		sim := track.CosineSimilarity(member.MeanEmbedding, tr.MeanEmbedding)
		if sim > best {
			best = sim
		}
	}
	return best
}

func conflictsSameCamera(g *Guest, tr *track.Track) bool {
	for _, member := range g.Tracks {
		if member.CameraID != tr.CameraID {
			continue
		}
		if member.Start < tr.End && tr.Start < member.End {
			return true
		}
	}
	return false
}

// assignSeat positions the guest at the mean face center of their
// longest-running camera and snaps to the nearest seat within tolerance.
func (c *Clusterer) assignSeat(g *Guest, seats seatmap.Lookup) {
	if seats == nil {
		return
	}
	perCamera := make(map[string]float64)
	for _, tr := range g.Tracks {
		perCamera[tr.CameraID] += tr.Duration()
	}
	camera := ""
	bestTime := -1.0
	for cam, total := range perCamera {
		if total > bestTime || (total == bestTime && cam < camera) {
			camera = cam
			bestTime = total
		}
	}

	var sumX, sumY float64
	n := 0
	for _, tr := range g.Tracks {
		if tr.CameraID != camera {
			continue
		}
		cx, cy := tr.MeanRegion().Center()
		sumX += cx
		sumY += cy
		n++
	}
	if n == 0 {
		return
	}
	seat, ok := seats.Nearest(camera, sumX/float64(n), sumY/float64(n), c.cfg.SeatDistanceTolerance)
	if !ok {
		return
	}
	g.Seat = &seat
}

func validate(guests []*Guest) error {
	for _, g := range guests {
		for i, a := range g.Tracks {
			for _, b := range g.Tracks[i+1:] {
				if a.CameraID == b.CameraID && a.Start < b.End && b.Start < a.End {
					return services.Wrap(services.ErrLogicInvariant, "cluster", "validate",
						fmt.Sprintf("%s holds overlapping tracks %d and %d on %s", g.ID, a.ID, b.ID, a.CameraID), nil)
				}
			}
		}
	}
	return nil
}
