// Package metrics holds the Prometheus collectors for the relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Relay outcomes, used as the "outcome" label.
const (
	OutcomeStreamed      = "streamed"
	OutcomeMissingConfig = "missing_config"
	OutcomeUpstreamError = "upstream_error"
	OutcomeNoBody        = "no_body"
	OutcomeConnectError  = "connect_error"
)

// Metrics bundles the relay collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	Requests       *prometheus.CounterVec
	UpstreamStatus *prometheus.CounterVec
	ActiveStreams  prometheus.Gauge
	StreamBytes    prometheus.Counter
	StreamDuration prometheus.Histogram
}

// New constructs a registry with relay and runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vibedrive_relay_requests_total",
		Help: "Relay requests by outcome",
	}, []string{"outcome"})

	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vibedrive_relay_upstream_responses_total",
		Help: "Upstream responses by HTTP status code",
	}, []string{"code"})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vibedrive_relay_active_streams",
		Help: "Streams currently being relayed",
	})

	bytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vibedrive_relay_stream_bytes_total",
		Help: "Bytes forwarded from upstream to clients",
	})

	dur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vibedrive_relay_stream_duration_seconds",
		Help:    "Lifetime of relayed streams",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})

	reg.MustRegister(
		reqs, upstream, active, bytes, dur,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:       reg,
		Requests:       reqs,
		UpstreamStatus: upstream,
		ActiveStreams:  active,
		StreamBytes:    bytes,
		StreamDuration: dur,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts one finished relay request.
func (m *Metrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

// RecordUpstreamStatus counts one upstream response.
func (m *Metrics) RecordUpstreamStatus(code string) {
	if m == nil {
		return
	}
	m.UpstreamStatus.WithLabelValues(code).Inc()
}

// StreamStarted marks a stream as active and returns a func that records
// its end along with the number of bytes forwarded.
func (m *Metrics) StreamStarted() func(bytes int64) {
	if m == nil {
		return func(int64) {}
	}
	start := time.Now()
	m.ActiveStreams.Inc()
	return func(bytes int64) {
		m.ActiveStreams.Dec()
		m.StreamBytes.Add(float64(bytes))
		m.StreamDuration.Observe(time.Since(start).Seconds())
	}
}
