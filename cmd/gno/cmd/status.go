package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/config"
	"github.com/gmickel/gno/internal/ui"
)

// newStatusCmd creates `gno status`: a one-shot health summary of the
// store and the active model preset (spec.md §4.5). Configured collections
// are not listed.
func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Number of indexed documents and chunks
  - Storage size
  - Active model preset and port availability`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	info, err := collectStatus(ctx, app)
	if err != nil {
		return err
	}

	noColor := ui.DetectNoColor()
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, app *appContext) (ui.StatusInfo, error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return ui.StatusInfo{}, err
	}

	stats, err := app.store.Stats(ctx)
	if err != nil {
		return ui.StatusInfo{}, err
	}

	info := ui.StatusInfo{
		ProjectName:    dataDir,
		TotalFiles:     int(stats.DocumentCount),
		TotalChunks:    int(stats.ChunkCount),
		MetadataSize:   stats.SizeBytes,
		TotalSize:      stats.SizeBytes,
		EmbedderType:   "static",
		EmbedderStatus: "offline",
		WatcherStatus:  "n/a",
	}

	if app.preset != nil {
		info.EmbedderType = string(app.preset.Name)
		info.EmbedderModel = app.preset.Embedding.ModelName()
		if app.preset.Embedding.Available(ctx) {
			info.EmbedderStatus = "ready"
		} else {
			info.EmbedderStatus = "offline"
		}
	}

	return info, nil
}
