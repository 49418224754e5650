package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/telemetry"
)

// newVSearchCmd creates `gno vsearch`: vector-only semantic search
// (spec.md §4.6).
func newVSearchCmd() *cobra.Command {
	f := &retrievalFlags{}
	cmd := &cobra.Command{
		Use:   "vsearch <query>",
		Short: "Vector-only semantic search over the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()
			start := time.Now()
			qr, err := app.search.VSearch(cmd.Context(), f.options(args[0]))
			if err != nil {
				return err
			}
			app.recordQuery(telemetry.QueryTypeSemantic, args[0], len(qr.Results), time.Since(start))
			return writeResults(cmd.OutOrStdout(), qr, f.format)
		},
	}
	f.register(cmd)
	return cmd
}

// newQueryCmd creates `gno query`: hybrid BM25+vector RRF fusion, with
// optional LLM query expansion and cross-encoder rerank (spec.md §4.6).
func newQueryCmd() *cobra.Command {
	f := &retrievalFlags{}
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Hybrid (BM25 + vector) search with RRF fusion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()
			start := time.Now()
			qr, err := app.search.Query(cmd.Context(), f.options(args[0]))
			if err != nil {
				return err
			}
			app.recordQuery(telemetry.QueryTypeMixed, args[0], len(qr.Results), time.Since(start))
			return writeResults(cmd.OutOrStdout(), qr, f.format)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.noExpand, "no-expand", false, "Disable LLM query expansion")
	cmd.Flags().BoolVar(&f.noRerank, "no-rerank", false, "Disable cross-encoder rerank")
	return cmd
}

// newAskCmd creates `gno ask`: hybrid search plus a grounded, cited
// answer synthesized from the top context blocks (spec.md §4.6).
func newAskCmd() *cobra.Command {
	f := &retrievalFlags{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with citations grounded in the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer app.Close()
			start := time.Now()
			ar, err := app.search.Ask(cmd.Context(), f.options(args[0]))
			if err != nil {
				return err
			}
			app.recordQuery(telemetry.QueryTypeMixed, args[0], len(ar.Results), time.Since(start))
			return writeAskResult(cmd.OutOrStdout(), ar, f.format)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.noExpand, "no-expand", false, "Disable LLM query expansion")
	cmd.Flags().BoolVar(&f.noRerank, "no-rerank", false, "Disable cross-encoder rerank")
	return cmd
}
