package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/queue"
	"reelsmith/internal/reel"
	"reelsmith/internal/render"
)

// newRenderCommand renders a planned item's reel on demand, regardless of the
// daemon's render.enabled setting.
func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	cmd := &cobra.Command{
		Use:   "render <item-id>",
		Short: "Render the reel for a planned queue item with ffmpeg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", ids[0])
				}
				if item.PlanPath == "" {
					return fmt.Errorf("item %d has no plan yet (status %s)", item.ID, item.Status)
				}
				plan, err := reel.ReadFile(item.PlanPath)
				if err != nil {
					return err
				}

				outputPath := strings.TrimSpace(outputFlag)
				if outputPath == "" {
					base := strings.TrimSuffix(filepath.Base(item.SourcePath), filepath.Ext(item.SourcePath))
					outputPath = filepath.Join(cfg.Paths.OutputDir, base+".reel.mp4")
				}

				out := cmd.OutOrStdout()
				renderer := render.New(cfg.Render, ctx.newLogger())
				renderer.OnProgress(func(p render.Progress) {
					fmt.Fprintf(out, "\rrendering %.0f%% (%s)", p.Percent, p.Speed)
				})
				if err := renderer.Render(cmd.Context(), plan, outputPath); err != nil {
					fmt.Fprintln(out)
					return err
				}
				fmt.Fprintln(out)

				item.RenderedFile = outputPath
				if err := store.Update(cmd.Context(), item); err != nil {
					return err
				}
				fmt.Fprintf(out, "Reel rendered to %s\n", outputPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file path (default: output_dir/<source>.reel.mp4)")
	return cmd
}
