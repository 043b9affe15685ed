package toolview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibedrive/internal/stream"
)

func call(tool string, input map[string]any) stream.ToolCall {
	return stream.ToolCall{Tool: tool, ParsedInput: input, Status: stream.ToolRunning}
}

func TestClassify_Read(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		want  ReadView
	}{
		{"path only", map[string]any{"path": "src/a.ts"}, ReadView{Path: "src/a.ts"}},
		{"file alias", map[string]any{"file": "b.go"}, ReadView{Path: "b.go"}},
		{"range", map[string]any{"path": "a.go", "offset": 10.0, "limit": 20.0}, ReadView{Path: "a.go", HasRange: true, From: 10, To: 30}},
		{"default span", map[string]any{"path": "a.go", "offset": 5.0}, ReadView{Path: "a.go", HasRange: true, From: 5, To: 105}},
		{"zero offset", map[string]any{"path": "a.go", "offset": 0.0, "limit": 50.0}, ReadView{Path: "a.go", HasRange: true, From: 0, To: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(call("Read", tt.input)))
		})
	}
}

func TestClassify_WriteTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	v, ok := Classify(call("Write", map[string]any{"path": "pkg/main.go", "contents": long})).(WriteView)
	require.True(t, ok)

	assert.Equal(t, "pkg/main.go", v.Path)
	assert.Equal(t, "go", v.Language)
	assert.Equal(t, strings.Repeat("x", 500)+TruncatedSuffix, v.Content)

	short, ok := Classify(call("Write", map[string]any{"path": "a.py", "content": "print(1)"})).(WriteView)
	require.True(t, ok)
	assert.Equal(t, "print(1)", short.Content)
	assert.Equal(t, "python", short.Language)
}

func TestClassify_StrReplace(t *testing.T) {
	v, ok := Classify(call("StrReplace", map[string]any{
		"path":       "a.ts",
		"old_string": strings.Repeat("o", 400),
		"new":        "fresh",
	})).(EditView)
	require.True(t, ok)

	assert.Equal(t, "a.ts", v.Path)
	assert.Len(t, v.Old, 300)
	assert.Equal(t, "fresh", v.New)
	assert.Equal(t, KindStrReplace, v.Kind())
}

func TestClassify_ShellSearchList(t *testing.T) {
	shell := Classify(call("Shell", map[string]any{"command": "go test ./...", "description": "run tests"}))
	assert.Equal(t, ShellView{Command: "go test ./...", Description: "run tests"}, shell)

	grep := Classify(call("Grep", map[string]any{"pattern": "TODO", "path": "internal"}))
	assert.Equal(t, SearchView{Tool: KindGrep, Pattern: "TODO", Path: "internal"}, grep)
	assert.Equal(t, KindGrep, grep.Kind())

	glob := Classify(call("Glob", map[string]any{"glob_pattern": "**/*.go"}))
	assert.Equal(t, SearchView{Tool: KindGlob, Pattern: "**/*.go"}, glob)

	ls := Classify(call("LS", map[string]any{"target_directory": "cmd/"}))
	assert.Equal(t, ListView{Path: "cmd/"}, ls)
}

func TestClassify_Fallback(t *testing.T) {
	t.Run("unknown tool pretty prints", func(t *testing.T) {
		v := Classify(call("WebFetch", map[string]any{"url": "https://example.com"}))
		assert.Equal(t, FallbackView{Tool: "WebFetch", Body: "{\n  \"url\": \"https://example.com\"\n}"}, v)
	})

	t.Run("unparsed input shows raw text", func(t *testing.T) {
		v := Classify(stream.ToolCall{Tool: "Read", RawInput: `{"path": "a.`})
		assert.Equal(t, FallbackView{Tool: "Read", Body: `{"path": "a.`}, v)
	})

	t.Run("raw input parsed late", func(t *testing.T) {
		v := Classify(stream.ToolCall{Tool: "Read", RawInput: `{"path":"late.go"}`})
		assert.Equal(t, ReadView{Path: "late.go"}, v)
	})
}

func TestLanguageFor(t *testing.T) {
	tests := map[string]string{
		"a.tsx":       "typescript",
		"b.JS":        "javascript",
		"c.yml":       "yaml",
		"script.zsh":  "bash",
		"README.md":   "markdown",
		"Makefile":    "text",
		"archive.tar": "text",
	}
	for p, want := range tests {
		assert.Equal(t, want, LanguageFor(p), p)
	}
}

func TestIsDirAndFileName(t *testing.T) {
	assert.True(t, IsDir("internal/"))
	assert.True(t, IsDir("cmd"))
	assert.False(t, IsDir("main.go"))

	assert.Equal(t, "main.go", FileName("cmd/app/main.go"))
	assert.Equal(t, "cmd", FileName("cmd/"))
	assert.Equal(t, "/", FileName("/"))
}
