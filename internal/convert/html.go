package convert

import (
	"context"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
)

// htmlConverter extracts the main article out of an HTML document with
// go-readability, falling back to the full document body when
// extraction finds nothing usable, then renders to markdown with
// html-to-markdown/v2.
type htmlConverter struct{}

func newHTMLConverter() *htmlConverter { return &htmlConverter{} }

func (c *htmlConverter) ID() string      { return "adapter.html" }
func (c *htmlConverter) Version() string { return "1" }

func (c *htmlConverter) CanHandle(mime, ext string) bool {
	return mime == "text/html" || ext == ".html" || ext == ".htm"
}

func (c *htmlConverter) Convert(ctx context.Context, in Input) (*ConversionArtifact, error) {
	html := string(in.Content)

	base, _ := url.Parse("file:///" + strings.TrimPrefix(in.RelPath, "/"))

	var (
		articleHTML string
		title       string
	)
	if art, err := readability.FromReader(strings.NewReader(html), base); err == nil && strings.TrimSpace(art.Content) != "" {
		articleHTML = art.Content
		title = strings.TrimSpace(art.Title)
	} else {
		articleHTML = html
	}

	md, err := htmltomarkdown.ConvertString(articleHTML)
	if err != nil {
		return nil, AdapterFailure(err)
	}

	if title != "" && !strings.HasPrefix(strings.TrimSpace(md), "# ") {
		md = "# " + title + "\n\n" + md
	}

	return &ConversionArtifact{Markdown: md, Title: title}, nil
}
