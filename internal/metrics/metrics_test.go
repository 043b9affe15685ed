package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest(OutcomeStreamed)
	m.RecordRequest(OutcomeStreamed)
	m.RecordRequest("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeStreamed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unknown")))
}

func TestMetrics_StreamLifecycle(t *testing.T) {
	m := New()
	done := m.StreamStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveStreams))

	done(128)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveStreams))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.StreamBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StreamDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest(OutcomeNoBody)
	m.RecordUpstreamStatus("403")
	m.StreamStarted()(10)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordUpstreamStatus("403")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vibedrive_relay_upstream_responses_total{code="403"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
