// Package ui renders the live agent session as a Bubble Tea dashboard.
//
// The Model subscribes to a Controller (normally a stream.Watcher) and turns
// each session snapshot into:
//   - a header with the job state and the prompt
//   - a scrollable SessionPanel of tool cards, streaming text and log lines
//   - a completion banner while a finished job is on display
//
// While the panel is closed only a small connection indicator is drawn.
package ui
