package segment

import (
	"sort"

	"reelsmith/internal/score"
)

// Segment is one selected highlight interval. Guests lists the guest ids
// seen in the interval, most present first.
type Segment struct {
	Start  float64  `json:"start"`
	End    float64  `json:"end"`
	Score  float64  `json:"score"`
	Guests []string `json:"guests,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// DominantGuest returns the guest most present in the segment, or "" when the
// segment has no guests.
func (s Segment) DominantGuest() string {
	if len(s.Guests) == 0 {
		return ""
	}
	return s.Guests[0]
}

func segmentOf(tl *score.Timeline, from, to int) Segment {
	seg := Segment{Start: tl.Buckets[from].Start, End: tl.Buckets[to].End()}
	var sum float64
	presence := make(map[string]int)
	for i := from; i <= to; i++ {
		sum += tl.Buckets[i].Score
		for _, g := range tl.Buckets[i].Guests {
			presence[g]++
		}
	}
	seg.Score = sum / float64(to-from+1)

	guests := make([]string, 0, len(presence))
	for g := range presence {
		guests = append(guests, g)
	}
	sort.Slice(guests, func(i, j int) bool {
		if presence[guests[i]] != presence[guests[j]] {
			return presence[guests[i]] > presence[guests[j]]
		}
		return guests[i] < guests[j]
	})
	seg.Guests = guests
	return seg
}
