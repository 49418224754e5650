package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// canonicalize applies spec.md §4.2 step 3: normalize line endings,
// strip a leading BOM, collapse long blank-line runs, trim trailing
// per-line whitespace, and ensure exactly one trailing newline.
func canonicalize(markdown string) string {
	s := strings.ReplaceAll(markdown, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimPrefix(s, "﻿")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")

	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	s = strings.TrimRight(s, "\n") + "\n"
	return s
}

// mirrorHash computes spec.md §4.2 step 5's content address.
func mirrorHash(canonicalMarkdown string) string {
	sum := sha256.Sum256([]byte(canonicalMarkdown))
	return hex.EncodeToString(sum[:])
}

// truncate enforces step 4's maxOutputChars bound, returning the
// truncated text and whether truncation occurred.
func truncate(markdown string, maxChars int) (string, bool) {
	if maxChars <= 0 || len(markdown) <= maxChars {
		return markdown, false
	}
	return markdown[:maxChars], true
}
