package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/search"
	"github.com/gmickel/gno/internal/telemetry"
)

// retrievalFlags holds the flag set shared by search, vsearch, query, and
// ask (spec.md §4.6's common options).
type retrievalFlags struct {
	limit        int
	minScore     float64
	hasMinScore  bool
	collections  []string
	languageHint string
	full         bool
	lineNumbers  bool
	noExpand     bool
	noRerank     bool
	format       string
}

func (f *retrievalFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.limit, "limit", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&f.minScore, "min-score", 0, "Drop results below this score")
	cmd.Flags().StringSliceVar(&f.collections, "collection", nil, "Restrict to these collections")
	cmd.Flags().StringVar(&f.languageHint, "language", "", "Restrict to documents with this language hint")
	cmd.Flags().BoolVar(&f.full, "full", false, "Return the whole document's content instead of a snippet")
	cmd.Flags().BoolVar(&f.lineNumbers, "line-numbers", false, "Annotate snippets with line numbers")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text, json, csv, or md")
}

func (f *retrievalFlags) options(query string) search.RetrievalOptions {
	return search.RetrievalOptions{
		QueryText:        query,
		Limit:            f.limit,
		MinScore:         f.minScore,
		HasMinScore:      f.minScore > 0,
		CollectionFilter: f.collections,
		LanguageHint:     f.languageHint,
		Full:             f.full,
		LineNumbers:      f.lineNumbers,
		NoExpand:         f.noExpand,
		NoRerank:         f.noRerank,
	}
}

// newSearchCmd creates `gno search`: BM25-only lexical search (spec.md §4.6).
func newSearchCmd() *cobra.Command {
	f := &retrievalFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "BM25 lexical search over the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			start := time.Now()
			qr, err := app.search.Search(cmd.Context(), f.options(args[0]))
			if err != nil {
				return err
			}
			app.recordQuery(telemetry.QueryTypeLexical, args[0], len(qr.Results), time.Since(start))
			return writeResults(cmd.OutOrStdout(), qr, f.format)
		},
	}
	f.register(cmd)
	return cmd
}
