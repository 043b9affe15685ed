package sse

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RoundTrip(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.SendComment("ping"))
	require.NoError(t, w.SendEvent("log", map[string]string{"type": "text", "line": "hi"}))
	require.NoError(t, w.SendRaw("job_finished", "{}\n"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	r := NewReader(strings.NewReader(rec.Body.String()))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "log", ev.Name)
	assert.JSONEq(t, `{"type":"text","line":"hi"}`, ev.Data)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "job_finished", ev.Name)
	assert.Equal(t, "{}\n", ev.Data)
}

type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewWriter_RequiresFlusher(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(noFlushWriter{httptest.NewRecorder()})
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}
