package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"reelsmith/internal/cluster"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/seatmap"
	"reelsmith/internal/stage"
)

// Clusterer merges the analyzer's tracks into guest identities and assigns
// seats from the venue layout.
type Clusterer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewClusterer builds the clusterer stage.
func NewClusterer(cfg *config.Config, logger *slog.Logger) *Clusterer {
	return &Clusterer{cfg: cfg, logger: logging.NewComponentLogger(logger, "clusterer")}
}

func (c *Clusterer) Prepare(_ context.Context, item *queue.Item) error {
	if item.AnalysisJSON == "" {
		return fmt.Errorf("item %d has no analysis artifact", item.ID)
	}
	item.SetProgress("Clustering", "Merging tracks into guests", 0)
	return nil
}

func (c *Clusterer) Execute(_ context.Context, item *queue.Item) error {
	analysis, err := loadAnalysis(item)
	if err != nil {
		return err
	}
	seats, err := seatmap.Load(c.cfg.Paths.SeatMapPath)
	if err != nil {
		return err
	}

	guests, err := cluster.New(c.cfg.Clustering, c.logger).Cluster(analysis.Tracks, seats)
	if err != nil {
		return err
	}
	if err := saveGuests(item, guests); err != nil {
		return err
	}

	seated := 0
	for _, g := range guests {
		if g.Seat != nil {
			seated++
		}
	}
	item.SetProgress("Clustering", fmt.Sprintf("%d guests, %d seated", len(guests), seated), 100)
	return nil
}

func (c *Clusterer) HealthCheck(_ context.Context) stage.Health {
	if _, err := seatmap.Load(c.cfg.Paths.SeatMapPath); err != nil {
		return stage.Unhealthy("clusterer", "seat map invalid: "+err.Error())
	}
	return stage.Healthy("clusterer")
}
