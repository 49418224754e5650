package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/store"
	"github.com/gmickel/gno/internal/ui"
)

// newCompactCmd creates `gno compact`: reclaim space in the vec0 helper
// table and FTS index left behind by deletes and re-embeds (spec.md §I
// "background compaction of the vector helper table").
func newCompactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Reclaim space from deleted chunks and stale vectors",
		Long: `SQLite's vec0 virtual table and the FTS5 index leave behind shadow-table
rows when chunks are deleted or re-embedded. compact runs VACUUM against
the store to reclaim that space; it performs no network calls and needs
no embedding model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompact(cmd)
		},
	}
	return cmd
}

func runCompact(cmd *cobra.Command) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	sqliteStore, ok := app.store.(*store.SQLiteStore)
	if !ok {
		return fmt.Errorf("compact requires the sqlite store backend")
	}

	before, err := app.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get index stats: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Compacting store...")
	start := time.Now()
	if _, err := sqliteStore.DB().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum store: %w", err)
	}

	after, err := app.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get index stats: %w", err)
	}

	reclaimed := before.SizeBytes - after.SizeBytes
	fmt.Fprintf(cmd.OutOrStdout(), "Compaction complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "Size: %s -> %s", ui.FormatBytes(before.SizeBytes), ui.FormatBytes(after.SizeBytes))
	if reclaimed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (reclaimed %s)", ui.FormatBytes(reclaimed))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
