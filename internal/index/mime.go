package index

import "strings"

// mimeTypes maps file extensions to the MIME types the converter registry
// dispatches on (spec.md §4.2's format matrix). Extensions outside this
// table still convert via their extension alone — CanHandle checks both.
var mimeTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".html":     "text/html",
	".htm":      "text/html",
	".pdf":      "application/pdf",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func detectMime(relPath string) string {
	ext := strings.ToLower(extOf(relPath))
	return mimeTypes[ext]
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
