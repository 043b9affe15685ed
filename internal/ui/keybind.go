package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the dashboard bindings. It implements help.KeyMap.
type KeyMap struct {
	Close      key.Binding
	Reload     key.Binding
	ToggleLogs key.Binding
	Show       key.Binding
	Up         key.Binding
	Down       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close panel"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "all logs"),
		),
		Show: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "show panel"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Close, k.Reload, k.ToggleLogs, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Close, k.Show, k.Reload},
		{k.ToggleLogs, k.Quit},
	}
}
