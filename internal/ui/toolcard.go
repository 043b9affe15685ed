package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vibedrive/internal/stream"
	"vibedrive/internal/toolview"
)

// minCardWidth keeps cards legible in narrow terminals.
const minCardWidth = 30

// RenderToolCard renders one tool call as a bordered card. The border and
// header icon follow the call status.
func RenderToolCard(call stream.ToolCall, width int) string {
	contentWidth := width - 4 // border + padding
	if contentWidth < minCardWidth {
		contentWidth = minCardWidth
	}

	statusIcon, statusStyle, frame := cardStatus(call.Status)
	header := fmt.Sprintf("%s %s %s",
		statusStyle.Render(statusIcon),
		Styles.Muted.Render(toolIcon(call.Tool)),
		Styles.ToolName.Render(call.Tool),
	)

	body := renderView(toolview.Classify(call), contentWidth)
	content := header
	if body != "" {
		content += "\n" + body
	}
	return frame.Width(contentWidth).Render(content)
}

func cardStatus(status stream.ToolStatus) (string, lipgloss.Style, lipgloss.Style) {
	switch status {
	case stream.ToolComplete:
		return IconSuccess, Styles.Success, Styles.CardComplete
	case stream.ToolError:
		return IconFailed, Styles.Error, Styles.CardError
	default:
		return IconRunning, Styles.Running, Styles.CardRunning
	}
}

func renderView(v toolview.View, width int) string {
	switch v := v.(type) {
	case toolview.ReadView:
		line := label("Reading") + " " + filePath(v.Path)
		if v.HasRange {
			line += "\n" + Styles.Muted.Render(fmt.Sprintf("Lines %d-%d", v.From, v.To))
		}
		return line

	case toolview.WriteView:
		line := label("Writing to") + " " + filePath(v.Path)
		if v.Content != "" {
			line += "\n" + codeBlock(toolview.FileName(v.Path), v.Language, v.Content, width)
		}
		return line

	case toolview.EditView:
		return label("Editing") + " " + filePath(v.Path) + "\n" + diffBlock(v.Old, v.New, width)

	case toolview.ShellView:
		line := Styles.ShellPrompt.Render("$") + " " + Styles.Normal.Render(v.Command)
		if v.Description != "" {
			line = Styles.Muted.Render(v.Description) + "\n" + line
		}
		return line

	case toolview.SearchView:
		verb := "Searching for"
		if v.Tool == toolview.KindGlob {
			verb = "Finding files matching"
		}
		line := label(verb) + " " + Styles.Pattern.Render(v.Pattern)
		if v.Path != "" {
			line += "\n" + Styles.Muted.Render("in") + " " + filePath(v.Path)
		}
		return line

	case toolview.ListView:
		return label("Listing") + " " + filePath(v.Path)

	case toolview.FallbackView:
		if v.Body == "" {
			return ""
		}
		return Styles.Muted.Render(wrap(v.Body, width))

	default:
		return ""
	}
}

func label(s string) string {
	return Styles.Muted.Render(s)
}

// filePath renders a path with a directory or file marker.
func filePath(p string) string {
	if toolview.IsDir(p) {
		return Styles.Dir.Render(IconDir) + " " + Styles.Path.Render(p)
	}
	return Styles.Muted.Render(IconFile) + " " + Styles.Path.Render(p)
}

func codeBlock(name, lang, code string, width int) string {
	head := Styles.Muted.Render(fmt.Sprintf("── %s (%s)", name, lang))
	return head + "\n" + Styles.Code.Render(wrap(code, width))
}

func diffBlock(oldText, newText string, width int) string {
	var b strings.Builder
	for _, line := range strings.Split(oldText, "\n") {
		b.WriteString(Styles.DiffOld.Render(wrap("- "+line, width)))
		b.WriteByte('\n')
	}
	lines := strings.Split(newText, "\n")
	for i, line := range lines {
		b.WriteString(Styles.DiffNew.Render(wrap("+ "+line, width)))
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// wrap hard-wraps s to width cells without touching existing newlines.
func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}
