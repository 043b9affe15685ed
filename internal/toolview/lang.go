package toolview

import (
	"path"
	"strings"
)

var extToLang = map[string]string{
	"ts":    "typescript",
	"tsx":   "typescript",
	"js":    "javascript",
	"jsx":   "javascript",
	"py":    "python",
	"rb":    "ruby",
	"go":    "go",
	"rs":    "rust",
	"java":  "java",
	"kt":    "kotlin",
	"swift": "swift",
	"css":   "css",
	"scss":  "scss",
	"html":  "html",
	"json":  "json",
	"yaml":  "yaml",
	"yml":   "yaml",
	"md":    "markdown",
	"sql":   "sql",
	"sh":    "bash",
	"bash":  "bash",
	"zsh":   "bash",
}

// LanguageFor returns the syntax name for a file path's extension, or
// "text" when the extension is unknown.
func LanguageFor(p string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if lang, ok := extToLang[ext]; ok {
		return lang
	}
	return "text"
}

// FileName returns the last path element, or p itself when it has none.
func FileName(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return p
	}
	return path.Base(trimmed)
}
