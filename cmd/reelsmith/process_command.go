package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/pipeline"
	"reelsmith/internal/queue"
	"reelsmith/internal/stage"
)

// newProcessCommand runs the full pipeline for a single video in the current
// process, without a daemon.
func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <video>",
		Short: "Analyze a video and produce a highlight reel plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				item, err := enqueueVideo(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				switch item.Status {
				case queue.StatusCompleted:
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d already completed (plan: %s)\n", item.ID, item.PlanPath)
					return nil
				case queue.StatusFailed:
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d previously failed: %s\nUse 'reelsmith queue retry %d' to requeue it.\n",
						item.ID, item.ErrorMessage, item.ID)
					return nil
				case queue.StatusReview:
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d is parked for review: %s\nUse 'reelsmith queue retry %d' to requeue it.\n",
						item.ID, item.ReviewReason, item.ID)
					return nil
				}

				logger := ctx.newLogger()
				set := pipeline.Stages(cfg, logger)
				steps := []struct {
					name    string
					handler stage.Handler
					start   queue.Status
					done    queue.Status
				}{
					{"analyze", set.Analyzer, queue.StatusPending, queue.StatusAnalyzed},
					{"cluster", set.Clusterer, queue.StatusAnalyzed, queue.StatusClustered},
					{"plan", set.Planner, queue.StatusClustered, queue.StatusPlanned},
					{"render", set.Renderer, queue.StatusPlanned, queue.StatusCompleted},
				}

				out := cmd.OutOrStdout()
				for _, step := range steps {
					if item.Status != step.start {
						continue
					}
					if err := step.handler.Prepare(cmd.Context(), item); err != nil {
						return failItem(store, cmd, item, step.name, err)
					}
					if err := step.handler.Execute(cmd.Context(), item); err != nil {
						return failItem(store, cmd, item, step.name, err)
					}
					if item.Status == step.start {
						item.Status = step.done
					}
					if err := store.Update(cmd.Context(), item); err != nil {
						return err
					}
					fmt.Fprintf(out, "%-8s %s\n", step.name+":", strings.TrimSpace(item.ProgressMessage))
					if item.Status == queue.StatusReview {
						fmt.Fprintf(out, "Item %d parked for review: %s\n", item.ID, item.ReviewReason)
						return nil
					}
				}

				if item.PlanPath != "" {
					fmt.Fprintf(out, "Plan written to %s\n", item.PlanPath)
				}
				if item.RenderedFile != "" {
					fmt.Fprintf(out, "Reel rendered to %s\n", item.RenderedFile)
				}
				return nil
			})
		},
	}
}

func failItem(store *queue.Store, cmd *cobra.Command, item *queue.Item, stageName string, err error) error {
	item.SetFailed(err.Error())
	if updateErr := store.Update(cmd.Context(), item); updateErr != nil {
		return fmt.Errorf("%s stage failed: %w (persist state: %v)", stageName, err, updateErr)
	}
	return fmt.Errorf("%s stage failed: %w", stageName, err)
}

// newAddCommand enqueues a video for a running daemon to pick up.
func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <video>",
		Short: "Enqueue a video for background processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				item, err := enqueueVideo(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"id":     item.ID,
						"source": item.SourcePath,
						"status": string(item.Status),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d queued (%s)\n", item.ID, item.SourcePath)
				return nil
			})
		},
	}
}
