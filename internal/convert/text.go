package convert

import (
	"context"
	"strings"
)

// textConverter passes plain text through as the markdown body, only
// converting CRLF line endings to LF (the canonicalization pipeline handles
// whitespace trimming and blank-run collapsing afterward).
type textConverter struct{}

func newTextConverter() *textConverter { return &textConverter{} }

func (c *textConverter) ID() string      { return "native.text" }
func (c *textConverter) Version() string { return "1" }

func (c *textConverter) CanHandle(mime, ext string) bool {
	return mime == "text/plain" || ext == ".txt"
}

func (c *textConverter) Convert(_ context.Context, in Input) (*ConversionArtifact, error) {
	text := strings.ReplaceAll(string(in.Content), "\r\n", "\n")
	return &ConversionArtifact{Markdown: text}, nil
}
