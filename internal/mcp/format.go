package mcp

import (
	"fmt"
	"strings"

	"github.com/gmickel/gno/internal/search"
)

// FormatQueryResult renders a QueryResult as markdown, for tools whose
// clients prefer prose over the structured SearchOutput.
func FormatQueryResult(qr *search.QueryResult) string {
	if len(qr.Results) == 0 {
		return fmt.Sprintf("No results found for %q", qr.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for %q (%s)\n\n", qr.Query, qr.Mode)
	fmt.Fprintf(&sb, "Found %d result", len(qr.Results))
	if len(qr.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range qr.Results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// FormatAskResult renders an AskResult as markdown: the grounded answer
// with its citations, falling back to plain results if no generation
// model produced an answer (spec.md §4.6, §7 degrade-never-fail).
func FormatAskResult(ar *search.AskResult) string {
	var sb strings.Builder

	if ar.AnswerGenerated {
		fmt.Fprintf(&sb, "## Answer\n\n%s\n\n", ar.Answer)
		if len(ar.Citations) > 0 {
			sb.WriteString("### Citations\n\n")
			for _, c := range ar.Citations {
				fmt.Fprintf(&sb, "[%d] %s (lines %d-%d)\n", c.N, c.URI, c.StartLine, c.EndLine)
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("## Answer\n\nNo generation model available; showing retrieved context only.\n\n")
	}

	fmt.Fprintf(&sb, "### Context (%d result", len(ar.Results))
	if len(ar.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(")\n\n")
	for i, r := range ar.Results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// formatResult formats a single retrieval hit.
func formatResult(sb *strings.Builder, num int, r search.Result) {
	fmt.Fprintf(sb, "### %d. %s (score: %.3f)\n", num, r.URI, r.Score)
	if r.Title != "" {
		fmt.Fprintf(sb, "**%s**", r.Title)
		if r.Collection != "" {
			fmt.Fprintf(sb, " — %s", r.Collection)
		}
		sb.WriteString("\n")
	}
	if r.SnippetStart > 0 || r.SnippetEnd > 0 {
		fmt.Fprintf(sb, "lines %d-%d\n", r.SnippetStart, r.SnippetEnd)
	}

	lang := r.CodeLang
	if lang == "" {
		fmt.Fprintf(sb, "\n%s\n\n", r.Snippet)
	} else {
		fmt.Fprintf(sb, "\n```%s\n%s\n```\n\n", lang, r.Snippet)
	}
}

// toSearchResultItems converts retrieval results to the MCP wire format.
func toSearchResultItems(results []search.Result) []SearchResultItem {
	out := make([]SearchResultItem, len(results))
	for i, r := range results {
		out[i] = SearchResultItem{
			Docid:        r.Docid,
			URI:          r.URI,
			Title:        r.Title,
			Collection:   r.Collection,
			Score:        r.Score,
			SnippetStart: r.SnippetStart,
			SnippetEnd:   r.SnippetEnd,
			Snippet:      r.Snippet,
			CodeLang:     r.CodeLang,
		}
	}
	return out
}

// toCitationItems converts citations to the MCP wire format.
func toCitationItems(citations []search.Citation) []CitationItem {
	out := make([]CitationItem, len(citations))
	for i, c := range citations {
		out[i] = CitationItem{
			N:         c.N,
			Docid:     c.Docid,
			URI:       c.URI,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
		}
	}
	return out
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
