// Package sse reads and writes Server-Sent Events streams.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxFrameBytes caps a single line; tool input chunks are small but a
// misbehaving upstream must not grow the scanner without bound.
const maxFrameBytes = 1024 * 1024

// ErrFrameTooLarge is returned when a stream line exceeds maxFrameBytes.
var ErrFrameTooLarge = errors.New("sse: frame too large")

// Event is one dispatched server-sent event.
type Event struct {
	ID    string
	Name  string // value of the "event:" field, empty when absent
	Data  string // data lines joined with "\n"
	Retry int    // reconnection hint in milliseconds, 0 when absent
}

// Reader parses an SSE byte stream into events.
type Reader struct {
	scanner *bufio.Scanner
	lastID  string
	// skipLF is set when a line ended in CR at the end of a read; a LF
	// starting the next read belongs to that CRLF.
	skipLF bool
}

// NewReader wraps source in a Reader.
func NewReader(source io.Reader) *Reader {
	r := &Reader{}
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameBytes)
	scanner.Split(r.scanLines)
	r.scanner = scanner
	return r
}

// scanLines splits on CRLF, LF or a lone CR. A CR ends the line at once so
// a CR-only stream is not held back waiting for the next byte.
func (r *Reader) scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if r.skipLF && len(data) > 0 {
		r.skipLF = false
		if data[0] == '\n' {
			return 1, nil, nil
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
		} else {
			r.skipLF = true
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Next blocks until a complete event has been read. Comment lines are
// skipped. An event still being assembled when the stream ends is discarded
// and io.EOF is returned.
func (r *Reader) Next() (Event, error) {
	if r == nil || r.scanner == nil {
		return Event{}, io.EOF
	}

	var (
		ev      Event
		data    strings.Builder
		hasData bool
		seen    bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if !seen {
				continue
			}
			ev.ID = r.lastID
			if hasData {
				ev.Data = data.String()
			}
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			ev.Name = value
			seen = true
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
			seen = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = ms
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Event{}, fmt.Errorf("read event stream: %w", ErrFrameTooLarge)
		}
		return Event{}, fmt.Errorf("read event stream: %w", err)
	}
	return Event{}, io.EOF
}

// LastID returns the most recent "id:" value seen on the stream.
func (r *Reader) LastID() string {
	return r.lastID
}

func splitField(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
