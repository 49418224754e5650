package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gmickel/gno/internal/store"
)

// newGetCmd creates `gno get`: fetch one document's full canonical
// markdown by docid, URI, or collection path (spec.md §4.6 "get").
func newGetCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "get <ref>",
		Short: "Fetch a document's full content by docid, URI, or path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			return getOne(cmd, app, args[0], jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output document metadata and chunks as JSON")
	return cmd
}

// newMultiGetCmd creates `gno multi-get`: fetch several documents in one
// call, the batched form of get (spec.md §4.6 "multi-get").
func newMultiGetCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "multi-get <ref> [ref...]",
		Short: "Fetch several documents' content in one call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			for _, ref := range args {
				if err := getOne(cmd, app, ref, jsonOut); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: %v\n", ref, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output document metadata and chunks as JSON")
	return cmd
}

func getOne(cmd *cobra.Command, app *appContext, ref string, jsonOut bool) error {
	ctx := cmd.Context()
	doc, err := app.store.GetDocument(ctx, parseDocRef(ref))
	if err != nil {
		return err
	}
	chunks, err := app.store.GetChunks(ctx, doc.ID)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Document *store.Document `json:"document"`
			Chunks   []*store.Chunk  `json:"chunks"`
		}{doc, chunks})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n\n", doc.Title, doc.URI)
	bodies := make([]string, len(chunks))
	for i, c := range chunks {
		bodies[i] = c.Body
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(bodies, "\n\n"))
	return nil
}
