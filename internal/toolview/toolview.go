// Package toolview turns a tool call's loosely typed input into one of a
// closed set of display variants.
package toolview

import (
	"encoding/json"
	"path"
	"strings"

	"vibedrive/internal/jsonutil"
	"vibedrive/internal/stream"
)

// Kind names a display variant. Tool names outside the known set map to
// KindFallback.
type Kind string

const (
	KindRead       Kind = "Read"
	KindWrite      Kind = "Write"
	KindStrReplace Kind = "StrReplace"
	KindShell      Kind = "Shell"
	KindGrep       Kind = "Grep"
	KindGlob       Kind = "Glob"
	KindLS         Kind = "LS"
	KindFallback   Kind = "Fallback"
)

const (
	maxWriteContent = 500
	maxEditText     = 300
	defaultReadSpan = 100

	// TruncatedSuffix is appended to written content cut at maxWriteContent.
	TruncatedSuffix = "\n// ... truncated"
)

// View is implemented by every display variant.
type View interface {
	Kind() Kind
	view()
}

// ReadView shows a file read, optionally with a line range.
type ReadView struct {
	Path     string
	HasRange bool
	From, To int
}

// WriteView shows a file write with a preview of its content.
type WriteView struct {
	Path     string
	Content  string
	Language string
}

// EditView shows a string replacement as a two-sided diff.
type EditView struct {
	Path     string
	Old, New string
}

// ShellView shows a terminal command.
type ShellView struct {
	Command     string
	Description string
}

// SearchView shows a Grep or Glob query.
type SearchView struct {
	Tool    Kind // KindGrep or KindGlob
	Pattern string
	Path    string // empty when the search has no path scope
}

// ListView shows a directory listing.
type ListView struct {
	Path string
}

// FallbackView shows input the other variants cannot interpret: pretty
// JSON when it parsed, otherwise the raw accumulated text.
type FallbackView struct {
	Tool string
	Body string
}

func (ReadView) Kind() Kind     { return KindRead }
func (WriteView) Kind() Kind    { return KindWrite }
func (EditView) Kind() Kind     { return KindStrReplace }
func (ShellView) Kind() Kind    { return KindShell }
func (v SearchView) Kind() Kind { return v.Tool }
func (ListView) Kind() Kind     { return KindLS }
func (FallbackView) Kind() Kind { return KindFallback }

func (ReadView) view()     {}
func (WriteView) view()    {}
func (EditView) view()     {}
func (ShellView) view()    {}
func (SearchView) view()   {}
func (ListView) view()     {}
func (FallbackView) view() {}

// Classify picks the display variant for a call.
func Classify(call stream.ToolCall) View {
	params := call.ParsedInput
	if params == nil {
		// Input may have completed after the reducer last tried; give it
		// one more chance before falling back to raw text.
		if err := json.Unmarshal([]byte(call.RawInput), &params); err != nil || params == nil {
			return FallbackView{Tool: call.Tool, Body: call.RawInput}
		}
	}

	switch Kind(call.Tool) {
	case KindRead:
		return readView(params)
	case KindWrite:
		p := jsonutil.FirstString(params, "path", "file")
		return WriteView{
			Path:     p,
			Content:  truncate(jsonutil.FirstString(params, "contents", "content"), maxWriteContent, TruncatedSuffix),
			Language: LanguageFor(p),
		}
	case KindStrReplace:
		return EditView{
			Path: jsonutil.FirstString(params, "path", "file"),
			Old:  truncate(jsonutil.FirstString(params, "old_string", "old"), maxEditText, ""),
			New:  truncate(jsonutil.FirstString(params, "new_string", "new"), maxEditText, ""),
		}
	case KindShell:
		return ShellView{
			Command:     jsonutil.ToString(params["command"]),
			Description: jsonutil.ToString(params["description"]),
		}
	case KindGrep, KindGlob:
		v := SearchView{
			Tool:    Kind(call.Tool),
			Pattern: jsonutil.FirstString(params, "pattern", "glob_pattern"),
		}
		if jsonutil.Has(params, "path") {
			v.Path = jsonutil.ToString(params["path"])
		}
		return v
	case KindLS:
		return ListView{Path: jsonutil.FirstString(params, "target_directory", "path")}
	default:
		return FallbackView{Tool: call.Tool, Body: jsonutil.Pretty(params)}
	}
}

func readView(params map[string]any) ReadView {
	v := ReadView{Path: jsonutil.FirstString(params, "path", "file")}
	if !jsonutil.Has(params, "offset") {
		return v
	}
	offset, ok := jsonutil.Number(params["offset"])
	if !ok {
		return v
	}
	limit, ok := jsonutil.Number(params["limit"])
	if !ok || limit == 0 {
		limit = defaultReadSpan
	}
	v.HasRange = true
	v.From = int(offset)
	v.To = int(offset + limit)
	return v
}

// IsDir reports whether p looks like a directory: no extension or a
// trailing slash.
func IsDir(p string) bool {
	return strings.HasSuffix(p, "/") || path.Ext(p) == ""
}

// truncate cuts s to max runes, appending suffix when it did.
func truncate(s string, max int, suffix string) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + suffix
}
