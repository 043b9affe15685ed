package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrStreamingUnsupported is returned by NewWriter when the ResponseWriter
// cannot flush.
var ErrStreamingUnsupported = errors.New("sse: response writer does not support flushing")

// Writer sends Server-Sent Events to an http.ResponseWriter.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// SetStreamHeaders sets the headers every event-stream response carries.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx
}

// NewWriter writes the stream headers and a 200 status.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	SetStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// SendEvent writes a named event with data marshalled as JSON.
func (s *Writer) SendEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal SSE data: %w", err)
	}
	return s.SendRaw(event, string(payload))
}

// SendRaw writes a named event whose data is already encoded. Multi-line
// data is split across several data fields.
func (s *Writer) SendRaw(event, data string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("write SSE event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// SendComment writes an SSE comment, used for keep-alive pings.
func (s *Writer) SendComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write SSE comment: %w", err)
	}
	s.flusher.Flush()
	return nil
}
