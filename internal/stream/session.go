// Package stream reduces the agent event stream into a session view-model
// and keeps a single reconnecting connection to the relay.
package stream

// MaxLogLines is the capacity of the session log ring buffer.
const MaxLogLines = 200

// ConnectionState is the reducer's view of the stream and the current job.
type ConnectionState string

const (
	StateIdle       ConnectionState = "idle"
	StateConnecting ConnectionState = "connecting"
	StateRunning    ConnectionState = "running"
	StateDone       ConnectionState = "done"
)

// ToolStatus is the outcome of a tool call. It starts running and moves to
// complete or error on a tool result; it never moves back.
type ToolStatus string

const (
	ToolRunning  ToolStatus = "running"
	ToolComplete ToolStatus = "complete"
	ToolError    ToolStatus = "error"
)

// LogLine is a free-form log entry that is not part of a tool call or the
// narration text.
type LogLine struct {
	ID   uint64
	Text string
	Kind string // log sub-type, e.g. "stderr", "info"
	Tool string
}

// ToolCall records one upstream tool invocation.
type ToolCall struct {
	ID          uint64
	Tool        string
	RawInput    string
	ParsedInput map[string]any // nil until RawInput parses as a JSON object
	Status      ToolStatus
}

// Clone returns a deep copy of the call.
func (c ToolCall) Clone() ToolCall {
	if c.ParsedInput != nil {
		c.ParsedInput = cloneValue(c.ParsedInput).(map[string]any)
	}
	return c
}

// Session is a read-only snapshot of one agent run as seen by the reducer.
type Session struct {
	Prompt        string
	LogLines      []LogLine
	ToolCalls     []ToolCall
	StreamingText string
	Status        ConnectionState
	Connected     bool

	// Generation increases on every job_started; consumers use it to tell
	// a new run from an update of the current one.
	Generation uint64
	LastEvent  string
	EventCount uint64
}

// CurrentTool returns the call currently receiving input, if any.
func (s Session) CurrentTool() (ToolCall, bool) {
	if len(s.ToolCalls) == 0 {
		return ToolCall{}, false
	}
	return s.ToolCalls[len(s.ToolCalls)-1], true
}

// logRing is a fixed-capacity FIFO of log lines. Only the tail is ever
// read, so eviction drops the oldest entry.
type logRing struct {
	buf   []LogLine
	start int
	size  int
}

func newLogRing(capacity int) *logRing {
	if capacity <= 0 {
		capacity = MaxLogLines
	}
	return &logRing{buf: make([]LogLine, capacity)}
}

func (r *logRing) push(line LogLine) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = line
		r.size++
		return
	}
	r.buf[r.start] = line
	r.start = (r.start + 1) % len(r.buf)
}

func (r *logRing) len() int {
	return r.size
}

func (r *logRing) reset() {
	clear(r.buf)
	r.start = 0
	r.size = 0
}

// lines returns the buffered lines in arrival order.
func (r *logRing) lines() []LogLine {
	out := make([]LogLine, r.size)
	for i := range r.size {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
