package pipeline

import (
	"log/slog"

	"reelsmith/internal/config"
	"reelsmith/internal/workflow"
)

// Stages wires the four stage handlers for the workflow manager.
func Stages(cfg *config.Config, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Analyzer:  NewAnalyzer(cfg, logger),
		Clusterer: NewClusterer(cfg, logger),
		Planner:   NewPlanner(cfg, logger),
		Renderer:  NewRenderer(cfg, logger),
	}
}
