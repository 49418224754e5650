package convert

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfConverter extracts page text and renders a markdown document with a
// page-break heading per page, the way spec.md §4.2's format matrix asks.
type pdfConverter struct{}

func newPDFConverter() *pdfConverter { return &pdfConverter{} }

func (c *pdfConverter) ID() string      { return "adapter.pdf" }
func (c *pdfConverter) Version() string { return "1" }

func (c *pdfConverter) CanHandle(mime, ext string) bool {
	return mime == "application/pdf" || ext == ".pdf"
}

func (c *pdfConverter) Convert(_ context.Context, in Input) (*ConversionArtifact, error) {
	r := bytes.NewReader(in.Content)
	reader, err := pdf.NewReader(r, int64(len(in.Content)))
	if err != nil {
		return nil, Corrupt(err)
	}

	var sb strings.Builder
	pages := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "## Page %d\n\n%s\n\n", i, text)
		pages++
	}

	if pages == 0 {
		return nil, Corrupt(fmt.Errorf("no extractable text in %d pages", reader.NumPage()))
	}

	return &ConversionArtifact{
		Markdown: sb.String(),
		Meta:     map[string]string{"pageCount": fmt.Sprintf("%d", reader.NumPage())},
	}, nil
}
