package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme colors used throughout the UI
const (
	ColorAccent    = "86"  // Cyan - running state, titles
	ColorHighlight = "205" // Magenta - tool names, key hints
	ColorDanger    = "196" // Red - errors, removed lines
	ColorSuccess   = "42"  // Green - completed calls, added lines
	ColorWarning   = "214" // Yellow - connecting, directories
	ColorPrompt    = "141" // Purple - prompt badge, search patterns
	ColorMuted     = "241" // Gray - labels, hints
	ColorText      = "252" // Light gray - normal text
	ColorDim       = "238" // Dark gray - borders
)

// Styles contains shared style definitions for the session panel.
var Styles = struct {
	Title   lipgloss.Style // Header status text
	Panel   lipgloss.Style // Outer panel frame
	Muted   lipgloss.Style
	Normal  lipgloss.Style
	Hint    lipgloss.Style
	Empty   lipgloss.Style // Empty state text (muted, italic)
	Prompt  lipgloss.Style // Prompt badge
	LogLine lipgloss.Style

	// Tool cards
	CardRunning  lipgloss.Style
	CardComplete lipgloss.Style
	CardError    lipgloss.Style
	ToolName     lipgloss.Style
	Path         lipgloss.Style
	Dir          lipgloss.Style
	Pattern      lipgloss.Style
	Code         lipgloss.Style
	DiffOld      lipgloss.Style
	DiffNew      lipgloss.Style
	ShellPrompt  lipgloss.Style

	// Status dots
	Running lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Pending lipgloss.Style

	Banner lipgloss.Style // Done banner
}{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorText)),
	Panel: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDim)).
		Padding(0, 1),
	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorMuted)),
	Normal: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorText)),
	Hint: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorMuted)),
	Empty: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorMuted)).
		Italic(true),
	Prompt: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorPrompt)),
	LogLine: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorMuted)),

	CardRunning: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccent)).
		Padding(0, 1),
	CardComplete: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorSuccess)).
		Padding(0, 1),
	CardError: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDanger)).
		Padding(0, 1),
	ToolName: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorHighlight)),
	Path: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccent)),
	Dir: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorWarning)),
	Pattern: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorPrompt)),
	Code: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorText)),
	DiffOld: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorDanger)),
	DiffNew: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorSuccess)),
	ShellPrompt: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorSuccess)),

	Running: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccent)),
	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorSuccess)),
	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorDanger)),
	Pending: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorWarning)),

	Banner: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorSuccess)).
		Foreground(lipgloss.Color(ColorSuccess)).
		Padding(0, 1),
}

// Status icons
const (
	IconRunning = "●"
	IconSuccess = "✓"
	IconFailed  = "✗"
	IconDir     = "▸"
	IconFile    = "·"
)

// toolIcons maps tool names to terminal-safe symbols.
var toolIcons = map[string]string{
	"Read":       "◀",
	"Write":      "▶",
	"StrReplace": "◆",
	"Shell":      "⬢",
	"Grep":       "◉",
	"Glob":       "◈",
	"LS":         "▤",
}

func toolIcon(name string) string {
	if icon, ok := toolIcons[name]; ok {
		return icon
	}
	return "▸"
}
