package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gmickel/gno/internal/search"
)

// writeResults renders a QueryResult in one of spec.md §6's output
// formats: "text" (default, human-readable), "json", "csv", or "md".
func writeResults(w io.Writer, qr *search.QueryResult, format string) error {
	switch format {
	case "", "text":
		return writeResultsText(w, qr)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(qr)
	case "csv":
		return writeResultsCSV(w, qr)
	case "md":
		return writeResultsMarkdown(w, qr)
	default:
		return fmt.Errorf("unknown format %q (want text, json, csv, or md)", format)
	}
}

func writeResultsText(w io.Writer, qr *search.QueryResult) error {
	if len(qr.Results) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	for i, r := range qr.Results {
		if _, err := fmt.Fprintf(w, "%d. %s  (%s, score %.4f)\n", i+1, r.URI, r.Docid, r.Score); err != nil {
			return err
		}
		if r.Snippet != "" {
			for _, line := range strings.Split(r.Snippet, "\n") {
				if _, err := fmt.Fprintf(w, "   %s\n", line); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeResultsCSV(w io.Writer, qr *search.QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"docid", "uri", "collection", "title", "score", "start_line", "end_line"}); err != nil {
		return err
	}
	for _, r := range qr.Results {
		row := []string{
			r.Docid, r.URI, r.Collection, r.Title,
			fmt.Sprintf("%.6f", r.Score),
			fmt.Sprintf("%d", r.SnippetStart),
			fmt.Sprintf("%d", r.SnippetEnd),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeResultsMarkdown(w io.Writer, qr *search.QueryResult) error {
	if _, err := fmt.Fprintf(w, "## Results for %q (%s)\n\n", qr.Query, qr.Mode); err != nil {
		return err
	}
	for i, r := range qr.Results {
		if _, err := fmt.Fprintf(w, "%d. **%s** — `%s` (score %.4f)\n", i+1, r.Title, r.URI, r.Score); err != nil {
			return err
		}
		if r.Snippet != "" {
			if _, err := fmt.Fprintf(w, "   > %s\n", strings.ReplaceAll(r.Snippet, "\n", "\n   > ")); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeAskResult(w io.Writer, ar *search.AskResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ar)
	}

	if ar.AnswerGenerated {
		if _, err := fmt.Fprintln(w, ar.Answer); err != nil {
			return err
		}
		if len(ar.Citations) > 0 {
			if _, err := fmt.Fprintln(w, "\nSources:"); err != nil {
				return err
			}
			for _, c := range ar.Citations {
				if _, err := fmt.Fprintf(w, "  [%d] %s:%d-%d\n", c.N, c.URI, c.StartLine, c.EndLine); err != nil {
					return err
				}
			}
		}
		return nil
	}

	qr := &search.QueryResult{Query: ar.Query, Mode: search.ModeHybrid, Results: ar.Results}
	return writeResultsText(w, qr)
}
