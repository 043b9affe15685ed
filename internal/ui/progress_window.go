package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"vibedrive/internal/stream"
)

// RawLogKind is the log sub-type shown when the panel is not showing every
// log line.
const RawLogKind = "raw"

const (
	defaultPanelWidth  = 80
	defaultPanelHeight = 20
)

// SessionPanel renders tool cards, streaming text and log lines of one
// session in a scrollable viewport.
type SessionPanel struct {
	viewport viewport.Model
	session  stream.Session
	allLogs  bool
	follow   bool
	width    int
}

// NewSessionPanel creates an empty panel.
func NewSessionPanel() *SessionPanel {
	p := &SessionPanel{
		viewport: viewport.New(defaultPanelWidth, defaultPanelHeight),
		follow:   true,
		width:    defaultPanelWidth,
	}
	p.refreshContent()
	return p
}

// SetSession replaces the rendered session. The view stays pinned to the
// bottom unless the user scrolled up.
func (p *SessionPanel) SetSession(s stream.Session) {
	p.session = s
	p.refreshContent()
}

// SetSize sets the outer size of the scroll area.
func (p *SessionPanel) SetSize(width, height int) {
	if width < minCardWidth+4 {
		width = minCardWidth + 4
	}
	if height < 4 {
		height = 4
	}
	p.width = width
	p.viewport.Width = width
	p.viewport.Height = height
	p.refreshContent()
}

// ToggleAllLogs switches between raw-only and all log lines.
func (p *SessionPanel) ToggleAllLogs() {
	p.allLogs = !p.allLogs
	p.refreshContent()
}

// ShowingAllLogs reports whether every log kind is rendered.
func (p *SessionPanel) ShowingAllLogs() bool {
	return p.allLogs
}

// Update forwards scroll input to the viewport.
func (p *SessionPanel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	p.follow = p.viewport.AtBottom()
	return cmd
}

// View renders the scroll area.
func (p *SessionPanel) View() string {
	return p.viewport.View()
}

// Content returns the unclipped panel body.
func (p *SessionPanel) Content() string {
	return renderSessionBody(p.session, p.width, p.allLogs)
}

func (p *SessionPanel) refreshContent() {
	p.viewport.SetContent(p.Content())
	if p.follow {
		p.viewport.GotoBottom()
	}
}

func renderSessionBody(s stream.Session, width int, allLogs bool) string {
	logs := visibleLogs(s.LogLines, allLogs)
	if len(s.ToolCalls) == 0 && s.StreamingText == "" && len(logs) == 0 {
		return Styles.Empty.Render("Waiting for agent output...")
	}

	var parts []string
	for _, call := range s.ToolCalls {
		parts = append(parts, RenderToolCard(call, width))
	}
	if s.StreamingText != "" {
		parts = append(parts, Styles.Normal.Render(wrap(s.StreamingText, width)))
	}
	for _, line := range logs {
		text := line.Text
		if allLogs && line.Kind != RawLogKind && line.Kind != "" {
			text = "[" + line.Kind + "] " + text
		}
		parts = append(parts, Styles.LogLine.Render(text))
	}
	return strings.Join(parts, "\n")
}

func visibleLogs(lines []stream.LogLine, all bool) []stream.LogLine {
	if all {
		return lines
	}
	out := make([]stream.LogLine, 0, len(lines))
	for _, line := range lines {
		if line.Kind == RawLogKind {
			out = append(out, line)
		}
	}
	return out
}
