package index

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gmickel/gno/internal/store"
)

// frontmatter is the parsed `---`-delimited YAML header of a document's
// canonical markdown (spec.md §4.3 step 7).
type frontmatter struct {
	Title        string   `yaml:"title"`
	Tags         []string `yaml:"tags"`
	LanguageHint string   `yaml:"language"`
}

var frontmatterPattern = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n?`)

// parseFrontmatter splits off and parses a leading YAML frontmatter block,
// returning it alongside the markdown body with the block removed. A
// missing or malformed block yields a zero-value frontmatter and the
// original markdown unchanged — frontmatter is an enrichment, not a
// requirement.
func parseFrontmatter(markdown string) (frontmatter, string) {
	m := frontmatterPattern.FindStringSubmatch(markdown)
	if m == nil {
		return frontmatter{}, markdown
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
		return frontmatter{}, markdown
	}

	body := markdown[len(m[0]):]
	for i, tag := range fm.Tags {
		fm.Tags[i] = strings.ToLower(strings.TrimSpace(tag))
	}
	return fm, body
}

var (
	wikiLinkPattern     = regexp.MustCompile(`\[\[([^\]|#]+)(?:#([^\]|]+))?(?:\|([^\]]+))?\]\]`)
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)
)

// extractLinks scans markdown for wiki-style `[[target]]` and standard
// markdown `[text](target)` links, recording the line each occurs on so
// doc_links carries accurate start/end positions (spec.md §4.3 step 7,
// §3's DocLink grammar). There is no CommonMark dependency in the pack
// sized to this need, so this is a small hand-rolled line scanner rather
// than a full AST parse — see DESIGN.md.
func extractLinks(markdown string) []*store.DocLink {
	var links []*store.DocLink
	lines := strings.Split(markdown, "\n")

	for lineIdx, line := range lines {
		lineNo := lineIdx + 1

		for _, m := range wikiLinkPattern.FindAllStringSubmatchIndex(line, -1) {
			target := strings.TrimSpace(line[m[2]:m[3]])
			anchor := ""
			if m[4] >= 0 {
				anchor = strings.TrimSpace(line[m[4]:m[5]])
			}
			text := target
			if m[6] >= 0 {
				text = strings.TrimSpace(line[m[6]:m[7]])
			}
			links = append(links, &store.DocLink{
				TargetRef:     target,
				TargetRefNorm: normalizeLinkTarget(target),
				TargetAnchor:  anchor,
				LinkType:      store.LinkTypeWiki,
				LinkText:      text,
				StartLine:     lineNo,
				StartCol:      m[0],
				EndLine:       lineNo,
				EndCol:        m[1],
				Source:        store.LinkSourceParsed,
			})
		}

		for _, m := range markdownLinkPattern.FindAllStringSubmatchIndex(line, -1) {
			text := line[m[2]:m[3]]
			target := line[m[4]:m[5]]
			if isExternalLink(target) {
				continue
			}
			target, anchor := splitAnchor(target)
			links = append(links, &store.DocLink{
				TargetRef:     target,
				TargetRefNorm: normalizeLinkTarget(target),
				TargetAnchor:  anchor,
				LinkType:      store.LinkTypeMarkdown,
				LinkText:      text,
				StartLine:     lineNo,
				StartCol:      m[0],
				EndLine:       lineNo,
				EndCol:        m[1],
				Source:        store.LinkSourceParsed,
			})
		}
	}

	return links
}

func isExternalLink(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:")
}

func splitAnchor(target string) (ref, anchor string) {
	if idx := strings.Index(target, "#"); idx >= 0 {
		return target[:idx], target[idx+1:]
	}
	return target, ""
}

// normalizeLinkTarget strips a trailing markdown extension and leading
// "./" so links written as "notes/foo.md", "notes/foo", and
// "./notes/foo.md" all resolve to the same target.
func normalizeLinkTarget(target string) string {
	target = strings.TrimPrefix(target, "./")
	target = strings.TrimSuffix(target, ".md")
	target = strings.TrimSuffix(target, ".markdown")
	return target
}
