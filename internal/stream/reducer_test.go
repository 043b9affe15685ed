package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibedrive/internal/sse"
)

func logEvent(t *testing.T, typ, line, tool string) sse.Event {
	t.Helper()
	data, err := json.Marshal(logPayload{Type: typ, Line: line, Tool: tool})
	require.NoError(t, err)
	return sse.Event{Name: EventLog, Data: string(data)}
}

func jobStarted(prompt string) sse.Event {
	return sse.Event{Name: EventJobStarted, Data: fmt.Sprintf(`{"prompt":%q}`, prompt)}
}

func TestReducer_Scenario(t *testing.T) {
	r := NewReducer(nil)

	r.Connecting()
	assert.Equal(t, StateConnecting, r.Status())

	res := r.Apply(sse.Event{Name: EventReady})
	assert.True(t, res.Changed)
	s := r.Snapshot()
	assert.Equal(t, StateIdle, s.Status)
	assert.True(t, s.Connected)

	r.Apply(jobStarted("fix bug"))
	s = r.Snapshot()
	assert.Equal(t, StateRunning, s.Status)
	assert.Equal(t, "fix bug", s.Prompt)

	r.Apply(logEvent(t, LogToolStart, "", "Read"))
	s = r.Snapshot()
	require.Len(t, s.ToolCalls, 1)
	assert.Equal(t, "Read", s.ToolCalls[0].Tool)
	assert.Equal(t, ToolRunning, s.ToolCalls[0].Status)

	r.Apply(logEvent(t, LogToolInput, `{"path":"a.ts"}`, ""))
	s = r.Snapshot()
	assert.Equal(t, map[string]any{"path": "a.ts"}, s.ToolCalls[0].ParsedInput)

	r.Apply(logEvent(t, LogToolResult, "✓ done", ""))
	s = r.Snapshot()
	assert.Equal(t, ToolComplete, s.ToolCalls[0].Status)

	res = r.Apply(sse.Event{Name: EventJobFinished, Data: "{}"})
	assert.True(t, res.JobFinished)
	assert.Equal(t, StateDone, r.Status())

	assert.True(t, r.FinishDisplay(r.Generation()))
	assert.Equal(t, StateIdle, r.Status())
}

func TestReducer_ToolInputConcatenatesChunks(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("p"))
	r.Apply(logEvent(t, LogToolStart, "", "Shell"))

	chunks := []string{`{"comm`, `and":"go `, `test ./..."`, `, "description":"run tests"}`}
	for i, chunk := range chunks {
		r.Apply(logEvent(t, LogToolInput, chunk, ""))
		call, ok := r.Snapshot().CurrentTool()
		require.True(t, ok)
		if i < len(chunks)-1 {
			assert.Nil(t, call.ParsedInput, "partial document must not parse (chunk %d)", i)
		}
	}

	call, _ := r.Snapshot().CurrentTool()
	assert.Equal(t, strings.Join(chunks, ""), call.RawInput)
	assert.Equal(t, "go test ./...", call.ParsedInput["command"])
	assert.Equal(t, "run tests", call.ParsedInput["description"])
}

func TestReducer_ToolResultStatus(t *testing.T) {
	tests := []struct {
		line string
		want ToolStatus
	}{
		{"✓ ok", ToolComplete},
		{"✓", ToolComplete},
		{"✗ failed", ToolError},
		{"", ToolError},
		{" ✓ leading space", ToolError},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := NewReducer(nil)
			r.Apply(jobStarted("p"))
			r.Apply(logEvent(t, LogToolStart, "", "Grep"))
			r.Apply(logEvent(t, LogToolResult, tt.line, ""))

			s := r.Snapshot()
			require.Len(t, s.ToolCalls, 1)
			assert.Equal(t, tt.want, s.ToolCalls[0].Status)
		})
	}
}

func TestReducer_SecondToolResultOverwritesWithoutNewCall(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("p"))
	r.Apply(logEvent(t, LogToolStart, "", "Write"))
	r.Apply(logEvent(t, LogToolResult, "✓ written", ""))
	r.Apply(logEvent(t, LogToolResult, "permission denied", ""))

	s := r.Snapshot()
	require.Len(t, s.ToolCalls, 1)
	assert.Equal(t, ToolError, s.ToolCalls[0].Status)
}

func TestReducer_ToolEventsWithoutCallAreNoops(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("p"))

	r.Apply(logEvent(t, LogToolInput, `{"a":1}`, ""))
	r.Apply(logEvent(t, LogToolResult, "✓", ""))

	s := r.Snapshot()
	assert.Empty(t, s.ToolCalls)
	assert.Empty(t, s.LogLines)
	assert.Equal(t, StateRunning, s.Status)
}

func TestReducer_ToolStartFromLine(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(logEvent(t, LogToolStart, "▶  StrReplace", ""))

	call, ok := r.Snapshot().CurrentTool()
	require.True(t, ok)
	assert.Equal(t, "StrReplace", call.Tool)
}

func TestReducer_ToolStartMovesCurrentIntoHistory(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("p"))
	r.Apply(logEvent(t, LogToolStart, "", "Read"))
	r.Apply(logEvent(t, LogToolInput, `{"path":"a.go"}`, ""))
	r.Apply(logEvent(t, LogToolResult, "✓", ""))
	r.Apply(logEvent(t, LogToolStart, "", "Shell"))
	r.Apply(logEvent(t, LogToolInput, `{"command":"ls"}`, ""))

	s := r.Snapshot()
	require.Len(t, s.ToolCalls, 2)
	assert.Equal(t, uint64(1), s.ToolCalls[0].ID)
	assert.Equal(t, `{"path":"a.go"}`, s.ToolCalls[0].RawInput)
	assert.Equal(t, ToolComplete, s.ToolCalls[0].Status)
	assert.Equal(t, uint64(2), s.ToolCalls[1].ID)
	assert.Equal(t, `{"command":"ls"}`, s.ToolCalls[1].RawInput)
	assert.Equal(t, ToolRunning, s.ToolCalls[1].Status)
}

func TestReducer_StreamingText(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("p"))

	r.Apply(logEvent(t, LogText, "Looking at ", ""))
	r.Apply(logEvent(t, LogText, "the code.", ""))
	assert.Equal(t, "Looking at the code.", r.Snapshot().StreamingText)

	r.Apply(logEvent(t, LogSeparator, "", ""))
	assert.Empty(t, r.Snapshot().StreamingText)

	r.Apply(logEvent(t, LogText, "Now editing", ""))
	r.Apply(logEvent(t, LogToolStart, "", "Write"))
	assert.Empty(t, r.Snapshot().StreamingText, "tool start interrupts narration")
}

func TestReducer_LogLinesCapped(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("p"))

	total := MaxLogLines + 57
	for i := 1; i <= total; i++ {
		r.Apply(logEvent(t, "stdout", fmt.Sprintf("line %d", i), "Shell"))
	}

	lines := r.Snapshot().LogLines
	require.Len(t, lines, MaxLogLines)
	assert.Equal(t, fmt.Sprintf("line %d", total-MaxLogLines+1), lines[0].Text)
	assert.Equal(t, fmt.Sprintf("line %d", total), lines[len(lines)-1].Text)
	for i := 1; i < len(lines); i++ {
		assert.Equal(t, lines[i-1].ID+1, lines[i].ID)
	}
	assert.Equal(t, "stdout", lines[0].Kind)
	assert.Equal(t, "Shell", lines[0].Tool)
}

func TestReducer_JobStartedResetsSession(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("first"))
	r.Apply(logEvent(t, "info", "hello", ""))
	r.Apply(logEvent(t, LogToolStart, "", "Read"))
	r.Apply(logEvent(t, LogText, "thinking", ""))

	r.Apply(jobStarted("second"))
	s := r.Snapshot()
	assert.Equal(t, "second", s.Prompt)
	assert.Empty(t, s.LogLines)
	assert.Empty(t, s.ToolCalls)
	assert.Empty(t, s.StreamingText)
	assert.Equal(t, StateRunning, s.Status)
	assert.Equal(t, uint64(2), s.Generation)

	r.Apply(logEvent(t, LogToolStart, "", "Read"))
	r.Apply(logEvent(t, "info", "again", ""))
	s = r.Snapshot()
	assert.Equal(t, uint64(1), s.ToolCalls[0].ID, "tool counter restarts")
	assert.Equal(t, uint64(1), s.LogLines[0].ID, "log counter restarts")
}

func TestReducer_MalformedPayloadsAreDropped(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("p"))
	before := r.Snapshot()

	for _, ev := range []sse.Event{
		{Name: EventJobStarted, Data: "not json"},
		{Name: EventLog, Data: "{"},
		{Name: EventJobFinished, Data: "nope"},
		{Name: EventJobStarted, Data: "null"},
		{Name: EventLog, Data: "null"},
		{Name: EventJobFinished, Data: " null "},
		{Name: EventLog},
		{Name: ":comment", Data: "{}"},
		{Name: "", Data: `{"type":"info","line":"x"}`},
		{Name: "heartbeat", Data: "{}"},
	} {
		res := r.Apply(ev)
		assert.False(t, res.Changed, "event %q should be ignored", ev.Name)
	}

	assert.Equal(t, before, r.Snapshot())
}

func TestReducer_FinishDisplayIgnoresStaleGeneration(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(jobStarted("one"))
	r.Apply(sse.Event{Name: EventJobFinished, Data: "{}"})
	stale := r.Generation()

	r.Apply(jobStarted("two"))
	assert.False(t, r.FinishDisplay(stale))
	assert.Equal(t, StateRunning, r.Status())
}

func TestReducer_OpenedAndDisconnected(t *testing.T) {
	r := NewReducer(nil)
	r.Connecting()
	r.Opened()
	s := r.Snapshot()
	assert.Equal(t, StateIdle, s.Status)
	assert.True(t, s.Connected)

	r.Disconnected()
	s = r.Snapshot()
	assert.Equal(t, StateIdle, s.Status)
	assert.False(t, s.Connected)
}

func TestReducer_SnapshotIsDeepCopy(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(logEvent(t, LogToolStart, "", "Read"))
	r.Apply(logEvent(t, LogToolInput, `{"opts":{"limit":5}}`, ""))

	s := r.Snapshot()
	s.ToolCalls[0].ParsedInput["opts"].(map[string]any)["limit"] = 99.0

	again := r.Snapshot()
	assert.Equal(t, 5.0, again.ToolCalls[0].ParsedInput["opts"].(map[string]any)["limit"])
}

func TestReducer_EventCounters(t *testing.T) {
	r := NewReducer(nil)
	r.Apply(sse.Event{Name: EventReady})
	r.Apply(jobStarted("p"))
	r.Apply(logEvent(t, LogText, "x", ""))

	s := r.Snapshot()
	assert.Equal(t, uint64(3), s.EventCount)
	assert.Equal(t, EventLog, s.LastEvent)
}
