package chunk

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MarkdownChunkerOptions configures the markdown chunker behavior.
type MarkdownChunkerOptions struct {
	// MaxChunkChars is the target max character budget per chunk
	// (default: DefaultMaxChunkChars, spec default ~1,500 chars).
	MaxChunkChars int

	MaxChunkTokens int // Deprecated: derived from MaxChunkChars if unset.
	OverlapTokens  int // Overlap between chunks when splitting (default: DefaultOverlapTokens)
}

// MarkdownChunker implements structural Markdown chunking: it respects
// boundaries in priority order (top-level heading, sub-heading, fenced
// code block, blank-line paragraph break, sentence boundary) and never
// splits inside a fenced code block.
type MarkdownChunker struct {
	options MarkdownChunkerOptions
}

// Regex patterns for markdown parsing
var (
	// Matches headers: # Title, ## Title, etc.
	headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

	// Matches frontmatter: ---\n...\n---
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)

	// Matches fenced code blocks (including metadata)
	codeBlockPattern = regexp.MustCompile("(?s)```[^`]*```")

	// Captures the declared language of a fenced code block that opens
	// a chunk, e.g. ```go -> "go".
	codeFenceLangPattern = regexp.MustCompile("^\\s*```([A-Za-z0-9_+-]*)")

	// Matches MDX self-closing components: <Component ... />
	mdxSelfClosingPattern = regexp.MustCompile(`<[A-Z][a-zA-Z0-9]*[^>]*/\s*>`)

	// Matches tables (header row with |)
	tablePattern = regexp.MustCompile(`(?m)^\|.+\|$(\n^\|[-:|]+\|$)?(\n^\|.+\|$)*`)

	// Splits prose into sentences: a lightweight heuristic (terminal
	// punctuation followed by whitespace and a capital letter or EOF),
	// not a statistical tokenizer — sufficient for markdown prose.
	sentenceBoundaryPattern = regexp.MustCompile(`([.!?])\s+(?:([A-Z])|$)`)
)

// NewMarkdownChunker creates a new markdown chunker with default options.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(MarkdownChunkerOptions{})
}

// NewMarkdownChunkerWithOptions creates a new markdown chunker with custom options.
func NewMarkdownChunkerWithOptions(opts MarkdownChunkerOptions) *MarkdownChunker {
	if opts.MaxChunkChars == 0 {
		if opts.MaxChunkTokens != 0 {
			opts.MaxChunkChars = opts.MaxChunkTokens * TokensPerChar
		} else {
			opts.MaxChunkChars = DefaultMaxChunkChars
		}
	}
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = opts.MaxChunkChars / TokensPerChar
	}
	if opts.OverlapTokens == 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	return &MarkdownChunker{options: opts}
}

// Close releases chunker resources.
// MarkdownChunker is stateless, so this is a no-op for interface consistency with CodeChunker.
func (c *MarkdownChunker) Close() {
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".mdx"}
}

// fitsBudget reports whether content fits within the configured
// character budget. The estimate comes from tiktoken's cl100k_base
// token count scaled by TokensPerChar rather than a raw byte length,
// since that avoids undercounting multi-byte prose and overcounting
// code/whitespace padding (falls back to TokensPerChar division if the
// encoder can't load).
func (c *MarkdownChunker) fitsBudget(content string) bool {
	return estimateTokens(content)*TokensPerChar <= c.options.MaxChunkChars
}

// Chunk splits a markdown file into semantic chunks.
func (c *MarkdownChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)

	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var chunks []*Chunk
	now := time.Now()
	remainingContent := content

	if frontmatterMatch := frontmatterPattern.FindStringSubmatch(remainingContent); frontmatterMatch != nil {
		frontmatter := frontmatterMatch[0]
		chunk := c.createFrontmatterChunk(file, frontmatter, now)
		chunks = append(chunks, chunk)
		remainingContent = remainingContent[len(frontmatter):]
	}

	sections := c.parseSections(remainingContent)

	if len(sections) == 0 {
		paragraphChunks := c.chunkByParagraphs(file, remainingContent, "", 1, now)
		chunks = append(chunks, paragraphChunks...)
		return chunks, nil
	}

	baseLineOffset := 1
	if len(chunks) > 0 && chunks[0].Metadata["type"] == "frontmatter" {
		baseLineOffset = strings.Count(content[:len(content)-len(remainingContent)], "\n") + 1
	}

	for _, section := range sections {
		sectionChunks := c.createSectionChunks(file, section, baseLineOffset, now)
		chunks = append(chunks, sectionChunks...)
	}

	return chunks, nil
}

// section represents a markdown section with header info.
type section struct {
	headerLevel int
	headerTitle string
	headerPath  string
	content     string
	startLine   int // Line number within the content (0-indexed)
}

// parseSections parses markdown content into sections, one per
// top-level or sub-level heading (priority 1 and 2 of the structural
// boundary order).
func (c *MarkdownChunker) parseSections(content string) []*section {
	lines := strings.Split(content, "\n")
	var sections []*section
	headerStack := make([]string, 6)

	var currentSection *section
	var contentBuilder strings.Builder

	for lineNum, line := range lines {
		if match := headerPattern.FindStringSubmatch(line); match != nil {
			if currentSection != nil {
				currentSection.content = contentBuilder.String()
				sections = append(sections, currentSection)
				contentBuilder.Reset()
			}

			level := len(match[1])
			title := strings.TrimSpace(match[2])

			headerStack[level-1] = title
			for i := level; i < 6; i++ {
				headerStack[i] = ""
			}

			var pathParts []string
			for i := 0; i < level; i++ {
				if headerStack[i] != "" {
					pathParts = append(pathParts, headerStack[i])
				}
			}
			headerPath := strings.Join(pathParts, " > ")

			currentSection = &section{
				headerLevel: level,
				headerTitle: title,
				headerPath:  headerPath,
				startLine:   lineNum,
			}
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
		} else if currentSection != nil {
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
		} else {
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
		}
	}

	if currentSection != nil {
		currentSection.content = contentBuilder.String()
		sections = append(sections, currentSection)
	}

	return sections
}

// createFrontmatterChunk creates a chunk for YAML frontmatter.
func (c *MarkdownChunker) createFrontmatterChunk(file *FileInput, content string, now time.Time) *Chunk {
	lineCount := strings.Count(content, "\n")
	if lineCount == 0 {
		lineCount = 1
	}

	return &Chunk{
		ID:          generateChunkID(file.Path, content),
		FilePath:    file.Path,
		Content:     content,
		RawContent:  content,
		ContentType: ContentTypeMarkdown,
		Language:    "markdown",
		StartLine:   1,
		EndLine:     lineCount,
		Metadata: map[string]string{
			"type":         "frontmatter",
			"header_path":  "",
			"header_level": "0",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// createSectionChunks creates one or more chunks from a section.
func (c *MarkdownChunker) createSectionChunks(file *FileInput, sec *section, baseLineOffset int, now time.Time) []*Chunk {
	content := strings.TrimRight(sec.content, "\n")

	trimmedContent := strings.TrimSpace(content)
	lines := strings.Split(trimmedContent, "\n")
	if len(lines) <= 1 && headerPattern.MatchString(trimmedContent) {
		return []*Chunk{}
	}

	if c.fitsBudget(content) {
		startLine := baseLineOffset + sec.startLine
		endLine := startLine + strings.Count(content, "\n")

		chunk := c.newChunk(file, sec, content, startLine, endLine, now)
		return []*Chunk{chunk}
	}

	startLine := baseLineOffset + sec.startLine
	return c.splitLargeSection(file, sec, content, startLine, now)
}

// splitLargeSection splits a large section, trying the next priority
// boundary down (fenced-code/table/MDX-block atomicity, then blank-line
// paragraphs, then sentence boundaries for any paragraph that alone
// still exceeds the budget).
func (c *MarkdownChunker) splitLargeSection(file *FileInput, sec *section, content string, startLine int, now time.Time) []*Chunk {
	atomicBlocks := c.findAtomicBlocks(content)
	paragraphs := c.splitByParagraphs(content, atomicBlocks)

	var chunks []*Chunk
	var currentContent strings.Builder
	currentStartLine := startLine
	lineCount := 0

	flush := func() {
		if currentContent.Len() == 0 {
			return
		}
		chunks = append(chunks, c.createChunkFromContent(file, sec, currentContent.String(), currentStartLine, lineCount, now))
		currentContent.Reset()
		currentStartLine = startLine + lineCount
		lineCount = 0
	}

	for i, para := range paragraphs {
		isAtomic := isAtomicBlock(para)

		// A non-atomic paragraph that alone busts the budget falls
		// through to sentence-boundary splitting; atomic blocks
		// (fenced code, tables, MDX) are never split further.
		pieces := []string{para}
		if !isAtomic && !c.fitsBudget(para) {
			pieces = c.splitBySentences(para)
		}

		for _, piece := range pieces {
			pieceLines := strings.Count(piece, "\n") + 1

			if currentContent.Len() > 0 && !c.fitsBudget(currentContent.String()+"\n\n"+piece) {
				flush()
				if i > 0 {
					currentContent.WriteString("<!-- Section: ")
					currentContent.WriteString(sec.headerPath)
					currentContent.WriteString(" -->\n\n")
				}
			}

			if currentContent.Len() > 0 {
				currentContent.WriteString("\n\n")
			}
			currentContent.WriteString(piece)
			lineCount += pieceLines + 1
		}
	}

	flush()

	return chunks
}

// splitBySentences splits prose into sentence-level pieces and regroups
// them into pieces that fit the budget. This is the lowest-priority
// structural boundary, used only when a single paragraph alone exceeds
// the chunk budget.
func (c *MarkdownChunker) splitBySentences(text string) []string {
	matches := sentenceBoundaryPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sentences []string
	last := 0
	for _, m := range matches {
		end := m[1]
		// Back up to just after the punctuation, before the matched
		// next-sentence capital letter (which belongs to the next piece).
		boundary := m[0] + 1
		sentences = append(sentences, strings.TrimSpace(text[last:boundary]))
		last = boundary
		_ = end
	}
	if last < len(text) {
		sentences = append(sentences, strings.TrimSpace(text[last:]))
	}

	var pieces []string
	var current strings.Builder
	for _, s := range sentences {
		if s == "" {
			continue
		}
		if current.Len() > 0 && !c.fitsBudget(current.String()+" "+s) {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}

	if len(pieces) == 0 {
		return []string{text}
	}
	return pieces
}

// isAtomicBlock reports whether a paragraph is a fenced code block,
// table, or MDX component that must never be split.
func isAtomicBlock(para string) bool {
	trimmed := strings.TrimSpace(para)
	if strings.HasPrefix(trimmed, "```") {
		return true
	}
	if tablePattern.MatchString(trimmed) {
		return true
	}
	if mdxSelfClosingPattern.MatchString(trimmed) {
		return true
	}
	return false
}

// findAtomicBlocks finds positions of blocks that shouldn't be split.
func (c *MarkdownChunker) findAtomicBlocks(content string) [][]int {
	var blocks [][]int

	blocks = append(blocks, codeBlockPattern.FindAllStringIndex(content, -1)...)
	blocks = append(blocks, tablePattern.FindAllStringIndex(content, -1)...)
	blocks = append(blocks, mdxSelfClosingPattern.FindAllStringIndex(content, -1)...)
	blocks = append(blocks, c.findMDXBlockComponents(content)...)

	return blocks
}

// findMDXBlockComponents finds MDX block components without backreferences.
func (c *MarkdownChunker) findMDXBlockComponents(content string) [][]int {
	var locs [][]int

	openTagPattern := regexp.MustCompile(`<([A-Z][a-zA-Z0-9]*)[^/>]*>`)
	matches := openTagPattern.FindAllStringSubmatchIndex(content, -1)

	for _, match := range matches {
		if len(match) >= 4 {
			tagName := content[match[2]:match[3]]
			closeTag := "</" + tagName + ">"
			startPos := match[0]

			closePos := strings.Index(content[match[1]:], closeTag)
			if closePos != -1 {
				endPos := match[1] + closePos + len(closeTag)
				locs = append(locs, []int{startPos, endPos})
			}
		}
	}

	return locs
}

// splitByParagraphs splits content by blank lines while preserving atomic blocks.
func (c *MarkdownChunker) splitByParagraphs(content string, atomicBlocks [][]int) []string {
	parts := strings.Split(content, "\n\n")

	var paragraphs []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	paragraphs = c.mergeAtomicBlocks(paragraphs)

	return paragraphs
}

// mergeAtomicBlocks merges paragraphs that are part of a fenced code block.
func (c *MarkdownChunker) mergeAtomicBlocks(paragraphs []string) []string {
	var result []string
	var inCodeBlock bool
	var codeBlockBuilder strings.Builder

	for _, para := range paragraphs {
		if inCodeBlock {
			codeBlockBuilder.WriteString("\n\n")
			codeBlockBuilder.WriteString(para)
			if strings.Contains(para, "```") {
				result = append(result, codeBlockBuilder.String())
				codeBlockBuilder.Reset()
				inCodeBlock = false
			}
			continue
		}

		openCount := strings.Count(para, "```")
		if openCount > 0 && openCount%2 == 1 {
			inCodeBlock = true
			codeBlockBuilder.WriteString(para)
			continue
		}

		result = append(result, para)
	}

	if inCodeBlock {
		result = append(result, codeBlockBuilder.String())
	}

	return result
}

// newChunk builds a Chunk, recording codeLang when content opens inside
// a fenced code block.
func (c *MarkdownChunker) newChunk(file *FileInput, sec *section, content string, startLine, endLine int, now time.Time) *Chunk {
	return &Chunk{
		ID:          generateChunkID(file.Path, content),
		FilePath:    file.Path,
		Content:     content,
		RawContent:  content,
		ContentType: ContentTypeMarkdown,
		Language:    "markdown",
		StartLine:   startLine,
		EndLine:     endLine,
		CodeLang:    codeFenceLang(content),
		Metadata: map[string]string{
			"header_path":   sec.headerPath,
			"header_level":  strconv.Itoa(sec.headerLevel),
			"section_title": sec.headerTitle,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// codeFenceLang returns the declared language of a fenced code block
// that opens the given content, or "" if content doesn't open inside one.
func codeFenceLang(content string) string {
	m := codeFenceLangPattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return m[1]
}

// createChunkFromContent creates a chunk from content string.
func (c *MarkdownChunker) createChunkFromContent(file *FileInput, sec *section, content string, startLine, lineCount int, now time.Time) *Chunk {
	content = strings.TrimRight(content, "\n ")
	return c.newChunk(file, sec, content, startLine, startLine+lineCount, now)
}

// chunkByParagraphs chunks content without headers by paragraphs.
func (c *MarkdownChunker) chunkByParagraphs(file *FileInput, content, headerPath string, startLine int, now time.Time) []*Chunk {
	paragraphs := strings.Split(content, "\n\n")

	var chunks []*Chunk
	var currentContent strings.Builder
	currentStartLine := startLine
	lineCount := 0
	pseudoSec := &section{headerPath: headerPath, headerLevel: 0, headerTitle: ""}

	flush := func() {
		if currentContent.Len() == 0 {
			return
		}
		chunks = append(chunks, c.newChunk(file, pseudoSec, currentContent.String(), currentStartLine, currentStartLine+lineCount, now))
		currentContent.Reset()
		currentStartLine = startLine + lineCount
		lineCount = 0
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		isAtomic := isAtomicBlock(para)
		pieces := []string{para}
		if !isAtomic && !c.fitsBudget(para) {
			pieces = c.splitBySentences(para)
		}

		for _, piece := range pieces {
			pieceLines := strings.Count(piece, "\n") + 1

			if currentContent.Len() > 0 && !c.fitsBudget(currentContent.String()+"\n\n"+piece) {
				flush()
			}

			if currentContent.Len() > 0 {
				currentContent.WriteString("\n\n")
			}
			currentContent.WriteString(piece)
			lineCount += pieceLines + 1
		}
	}

	flush()

	return chunks
}
