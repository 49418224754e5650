package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/gmickel/gno/internal/chunk"
)

// codeConverter renders source files as a fenced code block preceded by a
// tree-sitter symbol outline, when the language is recognized. Unrecognized
// source extensions still convert as a plain fenced block with no outline.
type codeConverter struct {
	parser    *chunk.Parser
	extractor *chunk.SymbolExtractor
	registry  *chunk.LanguageRegistry
}

func newCodeConverter() *codeConverter {
	registry := chunk.DefaultRegistry()
	return &codeConverter{
		parser:    chunk.NewParserWithRegistry(registry),
		extractor: chunk.NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
	}
}

var codeExtensions = map[string]string{
	".go":  "go",
	".ts":  "typescript",
	".tsx": "tsx",
	".js":  "javascript",
	".mjs": "javascript",
	".jsx": "jsx",
	".py":  "python",
}

func (c *codeConverter) ID() string      { return "adapter.code" }
func (c *codeConverter) Version() string { return "1" }

func (c *codeConverter) CanHandle(mime, ext string) bool {
	_, ok := codeExtensions[ext]
	return ok
}

func (c *codeConverter) Convert(ctx context.Context, in Input) (*ConversionArtifact, error) {
	lang, ok := codeExtensions[in.Ext]
	if !ok {
		return nil, Unsupported(in.Mime, in.Ext)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", in.RelPath)

	tree, err := c.parser.Parse(ctx, in.Content, lang)
	if err == nil {
		symbols := c.extractor.Extract(tree, in.Content)
		if len(symbols) > 0 {
			sb.WriteString("## Symbols\n\n")
			for _, sym := range symbols {
				writeSymbolOutline(&sb, sym)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("```" + lang + "\n")
	sb.Write(in.Content)
	if !strings.HasSuffix(string(in.Content), "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")

	return &ConversionArtifact{
		Markdown:     sb.String(),
		LanguageHint: lang,
	}, nil
}

func writeSymbolOutline(sb *strings.Builder, sym *chunk.Symbol) {
	sig := sym.Signature
	if sig == "" {
		sig = sym.Name
	}
	fmt.Fprintf(sb, "- **%s** `%s` (lines %d-%d)\n", sym.Type, sig, sym.StartLine, sym.EndLine)
	if sym.DocComment != "" {
		fmt.Fprintf(sb, "  %s\n", strings.TrimSpace(sym.DocComment))
	}
}
