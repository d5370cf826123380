package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/metrics"
	"reelsmith/internal/queue"
	"reelsmith/internal/reel"
	"reelsmith/internal/score"
	"reelsmith/internal/segment"
	"reelsmith/internal/stage"
)

// Planner scores the timeline, selects highlight segments, and assembles the
// edit plan. The plan is persisted on the item and written to the staging
// directory for external consumers.
type Planner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewPlanner builds the planner stage.
func NewPlanner(cfg *config.Config, logger *slog.Logger) *Planner {
	return &Planner{cfg: cfg, logger: logging.NewComponentLogger(logger, "planner")}
}

func (p *Planner) Prepare(_ context.Context, item *queue.Item) error {
	if item.GuestsJSON == "" {
		return fmt.Errorf("item %d has no guest artifact", item.ID)
	}
	item.SetProgress("Planning", "Scoring timeline", 0)
	return nil
}

func (p *Planner) Execute(_ context.Context, item *queue.Item) error {
	analysis, err := loadAnalysis(item)
	if err != nil {
		return err
	}
	guests, err := loadGuests(item)
	if err != nil {
		return err
	}

	timeline := score.New(p.cfg.Scoring, p.logger).Score(score.Inputs{
		Duration:    analysis.Duration,
		Faces:       analysis.Faces,
		AudioEvents: analysis.AudioEvents,
		Energy:      analysis.Energy,
		Guests:      guests,
	})
	if err := saveTimeline(item, timeline); err != nil {
		return err
	}

	item.SetProgress("Planning", "Selecting segments", 40)
	segments := segment.New(p.cfg.Selection, p.logger).Select(timeline)
	metrics.SegmentsSelected.Add(float64(len(segments)))

	plan := reel.NewAssembler(p.cfg.Reel, p.logger).Assemble(item.SourcePath, segments)
	if err := plan.CheckDuration(p.cfg.Selection.MinTotalS, p.cfg.Selection.MaxTotalS); err != nil {
		return err
	}

	planPath := filepath.Join(p.cfg.Paths.StagingDir, planFileName(item))
	if err := plan.WriteFile(planPath); err != nil {
		return err
	}
	item.PlanPath = planPath
	item.PlanJSON = encodePlan(plan)

	// A plan that cannot reach the duration floor is still delivered, but
	// flagged so an operator can decide whether the source simply ran short.
	if plan.TotalS < p.cfg.Selection.MinTotalS && analysis.Duration >= p.cfg.Selection.MinTotalS {
		item.SetReview(fmt.Sprintf("plan runs %.0fs, target floor %.0fs", plan.TotalS, p.cfg.Selection.MinTotalS))
		return nil
	}
	item.SetProgress("Planning", fmt.Sprintf("%d clips, %.0fs total", len(plan.Clips), plan.TotalS), 100)
	return nil
}

func (p *Planner) HealthCheck(_ context.Context) stage.Health {
	return stage.Healthy("planner")
}

func planFileName(item *queue.Item) string {
	base := strings.TrimSuffix(filepath.Base(item.SourcePath), filepath.Ext(item.SourcePath))
	if base == "" {
		base = fmt.Sprintf("item-%d", item.ID)
	}
	return base + ".plan.json"
}
