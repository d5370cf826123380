package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilter(statusFlag)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeQueueListJSON(cmd, items)
				}
				printQueueList(cmd, items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "Comma-separated status filter (e.g. pending,failed)")
	return cmd
}

func parseStatusFilter(raw string) ([]queue.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var statuses []queue.Status
	for _, value := range strings.Split(raw, ",") {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q (known: %s)", value, knownStatusList())
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func knownStatusList() string {
	all := queue.AllStatuses()
	names := make([]string, len(all))
	for i, status := range all {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}

func writeQueueListJSON(cmd *cobra.Command, items []*queue.Item) error {
	type jsonItem struct {
		ID           int64   `json:"id"`
		Source       string  `json:"source"`
		CameraID     string  `json:"camera_id"`
		Title        string  `json:"title"`
		Status       string  `json:"status"`
		Progress     float64 `json:"progress_percent"`
		Message      string  `json:"progress_message,omitempty"`
		Error        string  `json:"error_message,omitempty"`
		ReviewReason string  `json:"review_reason,omitempty"`
		PlanPath     string  `json:"plan_path,omitempty"`
	}
	payload := make([]jsonItem, 0, len(items))
	for _, item := range items {
		payload = append(payload, jsonItem{
			ID:           item.ID,
			Source:       item.SourcePath,
			CameraID:     item.CameraID,
			Title:        item.Title,
			Status:       string(item.Status),
			Progress:     item.ProgressPercent,
			Message:      item.ProgressMessage,
			Error:        item.ErrorMessage,
			ReviewReason: item.ReviewReason,
			PlanPath:     item.PlanPath,
		})
	}
	return writeJSON(cmd, map[string]any{"items": payload})
}

func printQueueList(cmd *cobra.Command, items []*queue.Item) {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	headers := []string{"ID", "Source", "Camera", "Status", "Progress", "Detail"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		detail := item.ProgressMessage
		if item.ErrorMessage != "" {
			detail = item.ErrorMessage
		}
		if item.ReviewReason != "" {
			detail = item.ReviewReason
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			truncateText(filepath.Base(item.SourcePath), 40),
			item.CameraID,
			colorizeStatus(item.Status),
			fmt.Sprintf("%.0f%%", item.ProgressPercent),
			truncateText(detail, 48),
		})
	}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show aggregate queue health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{
						"total":      health.Total,
						"pending":    health.Pending,
						"processing": health.Processing,
						"failed":     health.Failed,
						"review":     health.Review,
						"completed":  health.Completed,
					})
				}
				headers := []string{"State", "Count"}
				rows := [][]string{
					{"pending", fmt.Sprintf("%d", health.Pending)},
					{"processing", fmt.Sprintf("%d", health.Processing)},
					{"review", fmt.Sprintf("%d", health.Review)},
					{"failed", fmt.Sprintf("%d", health.Failed)},
					{"completed", fmt.Sprintf("%d", health.Completed)},
					{"total", fmt.Sprintf("%d", health.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed and review items back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int64{"retried": count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d item(s) reset for retry\n", count)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var allFlag bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilter(statusFlag)
			if err != nil {
				return err
			}
			if len(statuses) == 0 && !allFlag {
				return fmt.Errorf("pass --all to clear every item, or --status to clear a subset")
			}
			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int64{"removed": count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d item(s) removed\n", count)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "Comma-separated statuses to clear")
	cmd.Flags().BoolVar(&allFlag, "all", false, "Clear every queue item")
	return cmd
}
