package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/config"
	"github.com/gmickel/gno/internal/embed"
	"github.com/gmickel/gno/internal/index"
)

// newUpdateCmd creates the `gno update` command: it synchronizes every
// configured collection with the store (spec.md §4.3), the generalized
// form of the teacher's `index` command.
func newUpdateCmd() *cobra.Command {
	var (
		collections []string
		gitPull     bool
		noEmbed     bool
		offline     bool
		noColor     bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Synchronize the store with every configured collection",
		Long: `Walks each collection's root directory, converts changed files to
canonical markdown, chunks and embeds them, and indexes the results
for lexical and vector search (spec.md §4.3).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd, collections, gitPull, noEmbed, offline, noColor)
		},
	}

	cmd.Flags().StringSliceVar(&collections, "collection", nil, "Limit the sync to these collections (default: all configured)")
	cmd.Flags().BoolVar(&gitPull, "git-pull", false, "Run each collection's updateCmd before scanning")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "Skip embedding generation for changed chunks")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use the static embedder instead of the configured preset")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored/TUI progress output")

	return cmd
}

func runUpdate(cmd *cobra.Command, collections []string, gitPull, noEmbed, offline, noColor bool) error {
	ctx := cmd.Context()

	var forcePreset embed.PresetName
	if offline {
		forcePreset = embed.PresetStatic
	}
	app, err := openAppWithPreset(ctx, !noEmbed, forcePreset)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.openRunner(noColor); err != nil {
		return err
	}

	targets := app.cfg.Collections
	if len(collections) > 0 {
		targets = filterCollections(app.cfg.Collections, collections)
		if len(targets) == 0 {
			return fmt.Errorf("no configured collection matches %v", collections)
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no collections configured; run 'gno init <path>' first")
	}

	result, err := app.runner.Run(ctx, index.RunnerConfig{
		Collections:  targets,
		GitPull:      gitPull,
		EmbedEnabled: !noEmbed,
	})
	if err != nil {
		return err
	}

	for _, c := range result.Collections {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: +%d ~%d =%d !%d (orphaned %d)\n",
			c.Collection, c.Stats.FilesAdded, c.Stats.FilesUpdated, c.Stats.FilesUnchanged, c.Stats.FilesErrored, c.Orphaned)
		for _, fe := range c.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  error: %s: %v\n", fe.RelPath, fe.Err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "done in %s\n", result.Duration.Round(1e6))
	return nil
}

func filterCollections(all []config.CollectionConfig, names []string) []config.CollectionConfig {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []config.CollectionConfig
	for _, c := range all {
		if want[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
