package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/store"
)

// newLsCmd creates `gno ls`: list documents within a collection,
// optionally under a relative path prefix (spec.md §4.6 "ls").
func newLsCmd() *cobra.Command {
	var (
		collection string
		prefix     string
		limit      int
		offset     int
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List documents in a collection or path prefix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			docs, err := app.store.ListDocuments(cmd.Context(), store.ListScope{
				Collection: collection,
				PathPrefix: prefix,
			}, store.OrderURIAscending, limit, offset)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			}
			for _, d := range docs {
				fmt.Fprintf(cmd.OutOrStdout(), "#%s  %s\n", d.Docid, d.URI)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection to list (required; --prefix is a relative path and is not parsed as a gno:// URI)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Restrict to this relative path prefix")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum documents to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into the result set")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// newTagsCmd creates `gno tags`: aggregate tag usage counts (spec.md
// §4.6 "tags").
func newTagsCmd() *cobra.Command {
	var (
		collection string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags and their usage counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			counts, err := app.store.GetTags(cmd.Context(), collection, store.OrderCountDesc)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(counts)
			}
			for _, t := range counts {
				fmt.Fprintf(cmd.OutOrStdout(), "%5d  %s\n", t.Count, t.Tag)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Restrict to this collection")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
