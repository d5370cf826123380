package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelsmith/internal/daemon"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/queue"
	"reelsmith/internal/workflow"
)

// newDaemonCommand runs the full daemon in the foreground, equivalent to the
// reelsmithd binary.
func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the ingest watcher and processing pipeline in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger := ctx.newLogger()
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}

			manager := workflow.NewManager(cfg, store, logger, pipeline.Stages(cfg, logger))
			d, err := daemon.New(cfg, store, logger, manager)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "reelsmith daemon running; press Ctrl-C to stop")
			if addr := d.APIAddress(); addr != "" {
				fmt.Fprintf(out, "API and metrics on http://%s\n", addr)
			}

			<-runCtx.Done()
			return nil
		},
	}
}
