package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_NamedEvents(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(
		": connected\n" +
			"event: ready\n\n" +
			"event: job_started\n" +
			"data: {\"prompt\":\"fix bug\"}\n\n",
	)
	r := NewReader(input)

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ready", first.Name)
	assert.Empty(t, first.Data)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "job_started", second.Name)
	assert.Equal(t, `{"prompt":"fix bug"}`, second.Data)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_MultiLineDataAndCRLF(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("event: log\r\ndata: one\r\ndata:two\r\n\r\n"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "log", ev.Name)
	assert.Equal(t, "one\ntwo", ev.Data)
}

func TestReader_LineTerminators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source io.Reader
	}{
		{"bare CR", strings.NewReader("event: ready\rdata: x\r\r")},
		{"mixed", strings.NewReader("event: ready\r\ndata: x\n\r")},
		{"CRLF split across reads", iotest.OneByteReader(strings.NewReader("event: ready\r\ndata: x\r\n\r\n"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.source)

			ev, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, Event{Name: "ready", Data: "x"}, ev)

			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReader_IDAndRetry(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("id: 7\nretry: 1500\ndata: x\n\ndata: y\n\n"))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "7", first.ID)
	assert.Equal(t, 1500, first.Retry)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "7", second.ID, "id persists across events")
	assert.Equal(t, "7", r.LastID())
}

func TestReader_IncompleteEventAtEOFIsDiscarded(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("event: log\ndata: partial"))

	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_FrameTooLarge(t *testing.T) {
	t.Parallel()

	huge := "data: " + strings.Repeat("x", maxFrameBytes+1) + "\n\n"
	r := NewReader(strings.NewReader(huge))

	_, err := r.Next()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReader_NilReader(t *testing.T) {
	t.Parallel()

	var r *Reader
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
