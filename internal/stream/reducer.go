package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"vibedrive/internal/sse"
)

// Event names on the agent stream.
const (
	EventReady       = "ready"
	EventJobStarted  = "job_started"
	EventLog         = "log"
	EventJobFinished = "job_finished"
)

// Sub-types carried in the "type" field of a log event.
const (
	LogToolStart  = "tool_start"
	LogToolInput  = "tool_input"
	LogToolResult = "tool_result"
	LogText       = "text"
	LogSeparator  = "separator"
)

// SuccessMarker prefixes the line of a successful tool result.
const SuccessMarker = "✓"

// toolStartMarker prefixes tool_start lines that carry the tool name in the
// line instead of the tool field.
const toolStartMarker = "▶"

var errNullPayload = errors.New("null payload")

type jobStartedPayload struct {
	Prompt string `json:"prompt"`
}

type logPayload struct {
	Type string `json:"type"`
	Line string `json:"line"`
	Tool string `json:"tool,omitempty"`
}

// Result tells the caller what an applied event did.
type Result struct {
	Changed     bool
	JobFinished bool // the done-display window should (re)start
}

// Reducer folds stream events into session state. It is not safe for
// concurrent use; the Watcher serializes access.
type Reducer struct {
	logger *slog.Logger

	status    ConnectionState
	connected bool
	prompt    string
	text      string
	logs      *logRing

	// history holds finished-with calls; current is the only mutable one.
	history []ToolCall
	current *ToolCall

	nextLogID  uint64
	nextToolID uint64
	generation uint64
	lastEvent  string
	eventCount uint64
}

// NewReducer returns a reducer in the idle state.
func NewReducer(logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reducer{
		logger: logger,
		status: StateIdle,
		logs:   newLogRing(MaxLogLines),
	}
}

// Status returns the current connection state.
func (r *Reducer) Status() ConnectionState {
	return r.status
}

// Generation returns the number of job_started events seen.
func (r *Reducer) Generation() uint64 {
	return r.generation
}

// Connecting marks the start of a connection attempt.
func (r *Reducer) Connecting() {
	r.status = StateConnecting
}

// Opened marks a successfully opened stream.
func (r *Reducer) Opened() {
	r.connected = true
	if r.status == StateConnecting {
		r.status = StateIdle
	}
}

// Disconnected marks a closed or failed stream.
func (r *Reducer) Disconnected() {
	r.connected = false
	r.status = StateIdle
}

// FinishDisplay moves done back to idle, but only if no new job has started
// since the window for generation began.
func (r *Reducer) FinishDisplay(generation uint64) bool {
	if r.status != StateDone || r.generation != generation {
		return false
	}
	r.status = StateIdle
	return true
}

// Apply reduces one event. Malformed payloads are logged and dropped.
func (r *Reducer) Apply(ev sse.Event) Result {
	name := ev.Name
	if name == "" || strings.HasPrefix(name, ":") {
		return Result{}
	}
	if ev.Data == "" && name != EventReady {
		return Result{}
	}

	switch name {
	case EventReady:
		r.record(name)
		r.connected = true
		r.status = StateIdle
		return Result{Changed: true}

	case EventJobStarted:
		payload, err := decodePayload[jobStartedPayload](ev.Data)
		if err != nil {
			r.drop(name, err)
			return Result{}
		}
		r.record(name)
		r.startJob(payload.Prompt)
		return Result{Changed: true}

	case EventLog:
		payload, err := decodePayload[logPayload](ev.Data)
		if err != nil {
			r.drop(name, err)
			return Result{}
		}
		r.record(name)
		r.applyLog(*payload)
		return Result{Changed: true}

	case EventJobFinished:
		if !json.Valid([]byte(ev.Data)) {
			r.drop(name, fmt.Errorf("invalid JSON payload"))
			return Result{}
		}
		if strings.TrimSpace(ev.Data) == "null" {
			r.drop(name, errNullPayload)
			return Result{}
		}
		r.record(name)
		r.status = StateDone
		return Result{Changed: true, JobFinished: true}

	default:
		r.logger.Debug("unknown stream event", slog.String("event", name), slog.Int("bytes", len(ev.Data)))
		return Result{}
	}
}

// decodePayload decodes a JSON payload, rejecting a literal null.
func decodePayload[T any](data string) (*T, error) {
	var payload *T
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errNullPayload
	}
	return payload, nil
}

func (r *Reducer) record(name string) {
	r.lastEvent = name
	r.eventCount++
}

func (r *Reducer) drop(name string, err error) {
	r.logger.Warn("dropping malformed stream payload",
		slog.String("event", name),
		slog.Any("error", err),
	)
}

func (r *Reducer) startJob(prompt string) {
	r.prompt = prompt
	r.text = ""
	r.logs.reset()
	r.history = nil
	r.current = nil
	r.nextLogID = 0
	r.nextToolID = 0
	r.generation++
	r.status = StateRunning
}

func (r *Reducer) applyLog(p logPayload) {
	switch p.Type {
	case LogToolStart:
		r.text = ""
		if r.current != nil {
			r.history = append(r.history, *r.current)
		}
		r.nextToolID++
		r.current = &ToolCall{
			ID:     r.nextToolID,
			Tool:   toolName(p),
			Status: ToolRunning,
		}

	case LogToolInput:
		if r.current == nil {
			return
		}
		r.current.RawInput += p.Line
		var parsed map[string]any
		if err := json.Unmarshal([]byte(r.current.RawInput), &parsed); err == nil && parsed != nil {
			r.current.ParsedInput = parsed
		}

	case LogToolResult:
		if r.current == nil {
			return
		}
		if strings.HasPrefix(p.Line, SuccessMarker) {
			r.current.Status = ToolComplete
		} else {
			r.current.Status = ToolError
		}

	case LogText:
		r.text += p.Line

	case LogSeparator:
		r.text = ""

	default:
		r.nextLogID++
		r.logs.push(LogLine{
			ID:   r.nextLogID,
			Text: p.Line,
			Kind: p.Type,
			Tool: p.Tool,
		})
	}
}

func toolName(p logPayload) string {
	if p.Tool != "" {
		return p.Tool
	}
	if rest, ok := strings.CutPrefix(p.Line, toolStartMarker); ok {
		return strings.TrimLeftFunc(rest, unicode.IsSpace)
	}
	return p.Line
}

// Snapshot returns a deep copy of the session state.
func (r *Reducer) Snapshot() Session {
	calls := make([]ToolCall, 0, len(r.history)+1)
	for _, c := range r.history {
		calls = append(calls, c.Clone())
	}
	if r.current != nil {
		calls = append(calls, r.current.Clone())
	}
	return Session{
		Prompt:        r.prompt,
		LogLines:      r.logs.lines(),
		ToolCalls:     calls,
		StreamingText: r.text,
		Status:        r.status,
		Connected:     r.connected,
		Generation:    r.generation,
		LastEvent:     r.lastEvent,
		EventCount:    r.eventCount,
	}
}
