package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/store"
	"github.com/gmickel/gno/internal/telemetry"
	"github.com/gmickel/gno/internal/ui"
)

// newStatsCmd creates `gno stats`: index size/shape counts by default, plus
// a `queries` subcommand surfacing local query telemetry (spec.md §I).
func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  "Display document/chunk/embedding/tag/link counts and on-disk size for the store.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.AddCommand(newStatsQueriesCmd())
	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	app, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get index stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Collections: %d\n", stats.CollectionCount)
	fmt.Fprintf(w, "Documents:   %d\n", stats.DocumentCount)
	fmt.Fprintf(w, "Chunks:      %d\n", stats.ChunkCount)
	fmt.Fprintf(w, "Embeddings:  %d\n", stats.EmbeddingCount)
	fmt.Fprintf(w, "Tags:        %d\n", stats.TagCount)
	fmt.Fprintf(w, "Links:       %d\n", stats.LinkCount)
	fmt.Fprintf(w, "Size:        %s\n", ui.FormatBytes(stats.SizeBytes))
	return nil
}

func newStatsQueriesCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Show query pattern telemetry",
		Long: `Display in-process query pattern telemetry for this store:
  - Top query terms
  - Zero-result queries
Query type and latency distributions are not read from the store:
query_type_counts and latency_distribution are always empty, and the
summary totals are always zero.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatsQueries(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// StatsQueriesOutput is the JSON output format for query stats.
type StatsQueriesOutput struct {
	Summary             StatsQueriesSummary `json:"summary"`
	QueryTypeCounts     map[string]int64    `json:"query_type_counts"`
	TopTerms            []StatsTermCount    `json:"top_terms"`
	ZeroResultQueries   []string            `json:"zero_result_queries"`
	LatencyDistribution map[string]int64    `json:"latency_distribution"`
}

// StatsQueriesSummary provides overview statistics.
type StatsQueriesSummary struct {
	TotalQueries  int64   `json:"total_queries"`
	ZeroResultPct float64 `json:"zero_result_pct"`
}

// StatsTermCount represents a term and its frequency.
type StatsTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func runStatsQueries(cmd *cobra.Command, jsonOutput bool) error {
	app, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	sqliteStore, ok := app.store.(*store.SQLiteStore)
	if !ok {
		return fmt.Errorf("query telemetry requires the sqlite store backend")
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(sqliteStore.DB())
	if err != nil {
		return fmt.Errorf("open metrics store: %w", err)
	}

	output, err := collectQueryStats(metricsStore)
	if err != nil {
		return fmt.Errorf("get query stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}
	printStatsFormatted(cmd, output)
	return nil
}

func collectQueryStats(st *telemetry.SQLiteMetricsStore) (*StatsQueriesOutput, error) {
	topTerms, err := st.GetTopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("get top terms: %w", err)
	}
	zeroResults, err := st.GetZeroResultQueries(10)
	if err != nil {
		return nil, fmt.Errorf("get zero-result queries: %w", err)
	}

	output := &StatsQueriesOutput{
		QueryTypeCounts:     make(map[string]int64),
		TopTerms:            make([]StatsTermCount, 0, len(topTerms)),
		ZeroResultQueries:   zeroResults,
		LatencyDistribution: make(map[string]int64),
	}
	for _, tc := range topTerms {
		output.TopTerms = append(output.TopTerms, StatsTermCount{Term: tc.Term, Count: tc.Count})
	}
	return output, nil
}

func printStatsFormatted(cmd *cobra.Command, output *StatsQueriesOutput) {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Query Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Queries: %d\n", output.Summary.TotalQueries)
	fmt.Fprintf(w, "Zero Results:  %.1f%%\n", output.Summary.ZeroResultPct)
	fmt.Fprintln(w)

	if len(output.TopTerms) > 0 {
		fmt.Fprintln(w, "Top Query Terms:")
		for i, tc := range output.TopTerms {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, tc.Term, tc.Count)
		}
	} else {
		fmt.Fprintln(w, "Top Query Terms: (none recorded yet)")
	}
	fmt.Fprintln(w)

	if len(output.ZeroResultQueries) > 0 {
		fmt.Fprintln(w, "Recent Zero-Result Queries:")
		for _, q := range output.ZeroResultQueries {
			fmt.Fprintf(w, "  - %q\n", q)
		}
	} else {
		fmt.Fprintln(w, "Recent Zero-Result Queries: (none)")
	}
}
