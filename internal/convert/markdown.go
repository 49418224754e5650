package convert

import (
	"context"
	"regexp"
	"strings"
)

// markdownConverter passes already-markdown input straight through the
// canonicalization pipeline. Native converters for text/markdown and
// text/plain always win dispatch priority over adapters (spec.md §4.2).
type markdownConverter struct{}

func newMarkdownConverter() *markdownConverter { return &markdownConverter{} }

func (c *markdownConverter) ID() string      { return "native.markdown" }
func (c *markdownConverter) Version() string { return "1" }

func (c *markdownConverter) CanHandle(mime, ext string) bool {
	return mime == "text/markdown" || ext == ".md" || ext == ".markdown"
}

var h1Pattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func (c *markdownConverter) Convert(_ context.Context, in Input) (*ConversionArtifact, error) {
	md := string(in.Content)
	return &ConversionArtifact{
		Markdown: md,
		Title:    firstHeading(md),
	}, nil
}

// firstHeading returns the text of the first top-level heading, used as
// a document title fallback when frontmatter supplies none.
func firstHeading(md string) string {
	m := h1Pattern.FindStringSubmatch(md)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
