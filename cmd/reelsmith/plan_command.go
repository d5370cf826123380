package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/queue"
	"reelsmith/internal/reel"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect highlight reel plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	planCmd.AddCommand(newPlanShowCommand(ctx))
	return planCmd
}

// newPlanShowCommand accepts either a plan file path or a queue item id.
func newPlanShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-file | item-id>",
		Short: "Show the clips of a reel plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePlanPath(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			plan, err := reel.ReadFile(path)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, plan)
			}
			printPlan(cmd, plan)
			return nil
		},
	}
}

func resolvePlanPath(cmd *cobra.Command, ctx *commandContext, arg string) (string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return arg, nil
	}
	var path string
	storeErr := ctx.withStore(func(store *queue.Store) error {
		item, err := store.GetByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %d not found", id)
		}
		if item.PlanPath == "" {
			return fmt.Errorf("item %d has no plan yet (status %s)", id, item.Status)
		}
		path = item.PlanPath
		return nil
	})
	return path, storeErr
}

func printPlan(cmd *cobra.Command, plan *reel.Plan) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Plan %s\n", plan.ID)
	fmt.Fprintf(out, "Source:   %s\n", plan.Source)
	if plan.Title != "" {
		fmt.Fprintf(out, "Title:    %s (%s title screen)\n", plan.Title, formatSeconds(plan.TitleScreenS))
	}
	fmt.Fprintf(out, "Ordering: %s\n", plan.Ordering)
	fmt.Fprintf(out, "Total:    %s across %d clip(s)\n\n", formatSeconds(plan.TotalS), len(plan.Clips))

	headers := []string{"#", "Start", "End", "Length", "Score", "Guests", "Transition"}
	rows := make([][]string, 0, len(plan.Clips))
	for i, clip := range plan.Clips {
		transition := clip.Transition.Kind
		if clip.Transition.Duration > 0 {
			transition = fmt.Sprintf("%s (%s)", clip.Transition.Kind, formatSeconds(clip.Transition.Duration))
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			formatSeconds(clip.Start),
			formatSeconds(clip.End),
			formatSeconds(clip.Duration()),
			fmt.Sprintf("%.3f", clip.Score),
			strings.Join(clip.Guests, ", "),
			transition,
		})
	}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}
