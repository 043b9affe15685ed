package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vibedrive/internal/stream"
	"vibedrive/internal/ui/textutil"
)

// Controller is the part of stream.Watcher the dashboard drives.
type Controller interface {
	Subscribe() (<-chan stream.Session, func())
	Restart() error
}

type sessionMsg struct {
	Session stream.Session
}

type streamClosedMsg struct{}

type reloadResultMsg struct {
	Err error
}

// Model is the bubbletea model for the session dashboard. The panel opens
// when a new job starts and closes on Esc or once a finished job returns
// to idle; while closed only a connection indicator is drawn.
type Model struct {
	ctl         Controller
	updates     <-chan stream.Session
	unsubscribe func()

	session        stream.Session
	lastGeneration uint64
	visible        bool
	err            error

	panel   *SessionPanel
	spinner spinner.Model
	help    help.Model
	keys    KeyMap

	width  int
	height int
}

// NewModel subscribes to ctl and returns a model with the panel hidden.
func NewModel(ctl Controller) *Model {
	updates, unsubscribe := ctl.Subscribe()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = Styles.Running

	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHighlight)).
		Bold(true)
	h.Styles.ShortDesc = Styles.Hint
	h.Styles.ShortSeparator = Styles.Hint

	return &Model{
		ctl:         ctl,
		updates:     updates,
		unsubscribe: unsubscribe,
		panel:       NewSessionPanel(),
		spinner:     s,
		help:        h,
		keys:        DefaultKeyMap(),
	}
}

// Close releases the watcher subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Visible reports whether the session panel is open.
func (m *Model) Visible() bool {
	return m.visible
}

// Session returns the last session received.
func (m *Model) Session() stream.Session {
	return m.session
}

func waitForSession(updates <-chan stream.Session) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return streamClosedMsg{}
		}
		return sessionMsg{Session: s}
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForSession(m.updates), m.spinner.Tick)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case sessionMsg:
		m.applySession(msg.Session)
		return m, waitForSession(m.updates)

	case streamClosedMsg:
		return m, nil

	case reloadResultMsg:
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, m.panel.Update(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Close):
		m.visible = false
		return m, nil

	case key.Matches(msg, m.keys.Show):
		m.visible = true
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		m.visible = false
		m.err = nil
		ctl := m.ctl
		return m, func() tea.Msg {
			return reloadResultMsg{Err: ctl.Restart()}
		}

	case key.Matches(msg, m.keys.ToggleLogs):
		m.panel.ToggleAllLogs()
		return m, nil
	}

	if m.visible {
		return m, m.panel.Update(msg)
	}
	return m, nil
}

func (m *Model) applySession(s stream.Session) {
	prev := m.session
	m.session = s

	if s.Generation != m.lastGeneration {
		m.lastGeneration = s.Generation
		if s.Status == stream.StateRunning {
			m.visible = true
		}
	}
	if prev.Status == stream.StateDone && s.Status == stream.StateIdle {
		m.visible = false
	}

	m.panel.SetSession(s)
	m.layout()
}

// layout sizes the scroll area to what is left after the fixed rows.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	fixed := lipgloss.Height(m.headerView()) + lipgloss.Height(m.footerView()) + 2 // panel border
	if p := m.promptView(); p != "" {
		fixed += lipgloss.Height(p)
	}
	if b := m.bannerView(); b != "" {
		fixed += lipgloss.Height(b)
	}
	m.panel.SetSize(m.width-4, m.height-fixed)
}

// View implements tea.Model
func (m *Model) View() string {
	if !m.visible {
		return m.indicatorView()
	}

	sections := []string{m.headerView()}
	if p := m.promptView(); p != "" {
		sections = append(sections, p)
	}
	sections = append(sections, Styles.Panel.Render(m.panel.View()))
	if b := m.bannerView(); b != "" {
		sections = append(sections, b)
	}
	sections = append(sections, m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) headerView() string {
	var dot, text string
	switch m.session.Status {
	case stream.StateRunning:
		dot, text = m.spinner.View(), "Agent Working..."
	case stream.StateDone:
		dot, text = Styles.Success.Render(IconRunning), "Complete"
	default:
		dot, text = Styles.Pending.Render(IconRunning), "Connecting..."
	}
	return dot + " " + Styles.Title.Render(text)
}

func (m *Model) promptView() string {
	if m.session.Prompt == "" {
		return ""
	}
	prompt := m.session.Prompt
	if m.width > 0 {
		prompt = textutil.OneLine(prompt, m.width-len("PROMPT "))
	}
	return Styles.Prompt.Render("PROMPT") + " " + Styles.Normal.Render(prompt)
}

func (m *Model) bannerView() string {
	if m.session.Status != stream.StateDone {
		return ""
	}
	return Styles.Banner.Render(IconSuccess + " Task completed successfully   " +
		Styles.Muted.Render("Closing automatically..."))
}

func (m *Model) footerView() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(Styles.Error.Render("reload failed: "+m.err.Error()) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// indicatorView is drawn while the panel is closed.
func (m *Model) indicatorView() string {
	dot, label := Styles.Error.Render(IconRunning), "SSE Disconnected"
	if m.session.Connected {
		dot, label = Styles.Success.Render(IconRunning), "SSE Connected"
	}

	lines := []string{
		dot + " " + Styles.Normal.Render(label),
		Styles.Muted.Render(fmt.Sprintf("status: %s  events: %d  last: %s",
			m.session.Status, m.session.EventCount, orDash(m.session.LastEvent))),
	}
	if m.err != nil {
		lines = append(lines, Styles.Error.Render("reload failed: "+m.err.Error()))
	}
	lines = append(lines, m.help.ShortHelpView([]key.Binding{m.keys.Show, m.keys.Reload, m.keys.Quit}))
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctl Controller, opts ...tea.ProgramOption) error {
	m := NewModel(ctl)
	defer m.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
