package convert

import (
	"bytes"
	"fmt"
	"strings"

	"context"

	"github.com/xuri/excelize/v2"
)

// xlsxConverter renders one markdown table per sheet.
type xlsxConverter struct{}

func newXLSXConverter() *xlsxConverter { return &xlsxConverter{} }

func (c *xlsxConverter) ID() string      { return "adapter.xlsx" }
func (c *xlsxConverter) Version() string { return "1" }

func (c *xlsxConverter) CanHandle(mime, ext string) bool {
	return ext == ".xlsx"
}

func (c *xlsxConverter) Convert(_ context.Context, in Input) (*ConversionArtifact, error) {
	f, err := excelize.OpenReader(bytes.NewReader(in.Content))
	if err != nil {
		return nil, Corrupt(err)
	}
	defer f.Close()

	var sb strings.Builder
	sheets := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "## %s\n\n", sheet)
		writeMarkdownTable(&sb, rows)
		sb.WriteString("\n")
		sheets++
	}

	if sheets == 0 {
		return nil, Corrupt(fmt.Errorf("no non-empty sheets found"))
	}

	return &ConversionArtifact{Markdown: sb.String()}, nil
}

// writeMarkdownTable renders rows as a GitHub-flavored markdown table,
// padding ragged rows to the header's column count.
func writeMarkdownTable(sb *strings.Builder, rows [][]string) {
	cols := len(rows[0])
	writeRow(sb, rows[0], cols)

	sb.WriteString("|")
	for i := 0; i < cols; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")

	for _, row := range rows[1:] {
		writeRow(sb, row, cols)
	}
}

func writeRow(sb *strings.Builder, row []string, cols int) {
	sb.WriteString("|")
	for i := 0; i < cols; i++ {
		cell := ""
		if i < len(row) {
			cell = strings.ReplaceAll(row[i], "|", "\\|")
		}
		sb.WriteString(" " + cell + " |")
	}
	sb.WriteString("\n")
}
