// Package relay forwards the upstream receiver's event stream to browser
// clients, adding the receiver token and optional Cloudflare Access headers
// on the server side.
package relay

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"vibedrive/internal/metrics"
	"vibedrive/internal/sse"
)

const (
	// maxDiagnosticChars bounds how much of an upstream error body is logged.
	maxDiagnosticChars = 200
	copyBufferSize     = 32 * 1024

	headerCFClientID     = "CF-Access-Client-Id"
	headerCFClientSecret = "CF-Access-Client-Secret"

	accessDeniedHint = "Cloudflare Access denied - check service token"
)

// ErrMissingConfig is logged when the upstream URL or token is unset.
var ErrMissingConfig = errors.New("missing events config")

// Config locates the upstream receiver.
type Config struct {
	EventsURL            string
	EventsToken          string
	CFAccessClientID     string
	CFAccessClientSecret string
}

func (c Config) hasAccessToken() bool {
	return c.CFAccessClientID != "" && c.CFAccessClientSecret != ""
}

// upstreamURL returns <base>/events?token=<token>.
func (c Config) upstreamURL() string {
	return c.EventsURL + "/events?" + url.Values{"token": {c.EventsToken}}.Encode()
}

// Option configures a Handler.
type Option func(*Handler)

// WithHTTPClient sets the client used for upstream requests. It must not
// carry a timeout; streams are long-lived.
func WithHTTPClient(client *http.Client) Option {
	return func(h *Handler) {
		if client != nil {
			h.client = client
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records request outcomes and stream sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracer sets the tracer for the per-request span.
func WithTracer(tracer oteltrace.Tracer) Option {
	return func(h *Handler) {
		if tracer != nil {
			h.tracer = tracer
		}
	}
}

// Handler serves GET /api/events. It keeps no state between requests.
type Handler struct {
	cfg     Config
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  oteltrace.Tracer
}

// New returns a relay handler for cfg.
func New(cfg Config, opts ...Option) *Handler {
	h := &Handler{
		cfg:    cfg,
		client: &http.Client{},
		logger: slog.New(slog.DiscardHandler),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type configErrorBody struct {
	Error string      `json:"error"`
	Debug configDebug `json:"debug"`
}

type configDebug struct {
	HasEventsURL   bool `json:"hasEventsUrl"`
	HasEventsToken bool `json:"hasEventsToken"`
}

type upstreamErrorBody struct {
	Error         string `json:"error"`
	Hint          string `json:"hint,omitempty"`
	CFHeadersSent bool   `json:"cfHeadersSent"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "relay.events", oteltrace.WithSpanKind(oteltrace.SpanKindServer))
	defer span.End()

	cfEnabled := h.cfg.hasAccessToken()
	h.logger.Debug("relay config",
		slog.Bool("has_events_url", h.cfg.EventsURL != ""),
		slog.Bool("has_events_token", h.cfg.EventsToken != ""),
		slog.Bool("has_cf_client_id", h.cfg.CFAccessClientID != ""),
		slog.Bool("has_cf_client_secret", h.cfg.CFAccessClientSecret != ""),
	)

	if h.cfg.EventsURL == "" || h.cfg.EventsToken == "" {
		h.logger.Error("relay not configured", slog.Any("error", ErrMissingConfig))
		span.SetStatus(codes.Error, ErrMissingConfig.Error())
		h.metrics.RecordRequest(metrics.OutcomeMissingConfig)
		writeJSON(w, http.StatusInternalServerError, configErrorBody{
			Error: "Missing events config",
			Debug: configDebug{
				HasEventsURL:   h.cfg.EventsURL != "",
				HasEventsToken: h.cfg.EventsToken != "",
			},
		})
		return
	}
	if !cfEnabled && (h.cfg.CFAccessClientID != "" || h.cfg.CFAccessClientSecret != "") {
		h.logger.Warn("partial cloudflare access token configured; sending no access headers")
	}
	span.SetAttributes(attribute.Bool("vibedrive.cf_headers_sent", cfEnabled))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.upstreamURL(), nil)
	if err != nil {
		h.connectFailed(w, span, err)
		return
	}
	req.Header.Set("Cache-Control", "no-store")
	if cfEnabled {
		req.Header.Set(headerCFClientID, h.cfg.CFAccessClientID)
		req.Header.Set(headerCFClientSecret, h.cfg.CFAccessClientSecret)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := h.client.Do(req)
	if err != nil {
		h.connectFailed(w, span, err)
		return
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	h.metrics.RecordUpstreamStatus(strconv.Itoa(resp.StatusCode))
	h.logger.Info("upstream responded", slog.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.upstreamFailed(w, span, resp, cfEnabled)
		return
	}

	if resp.Body == nil || nullBodyStatus(resp.StatusCode) {
		h.logger.Error("upstream returned no body")
		span.SetStatus(codes.Error, "no stream from upstream")
		h.metrics.RecordRequest(metrics.OutcomeNoBody)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "No stream from upstream"})
		return
	}

	h.pipe(w, r, span, resp.Body)
}

func (h *Handler) upstreamFailed(w http.ResponseWriter, span oteltrace.Span, resp *http.Response, cfEnabled bool) {
	preview := readPreview(resp.Body, maxDiagnosticChars)
	h.logger.Error("upstream error",
		slog.Int("status", resp.StatusCode),
		slog.String("body", preview),
	)
	span.SetStatus(codes.Error, "upstream error")
	h.metrics.RecordRequest(metrics.OutcomeUpstreamError)

	body := upstreamErrorBody{
		Error:         "Upstream error: " + strconv.Itoa(resp.StatusCode),
		CFHeadersSent: cfEnabled,
	}
	if resp.StatusCode == http.StatusForbidden {
		body.Hint = accessDeniedHint
	}
	writeJSON(w, resp.StatusCode, body)
}

func (h *Handler) connectFailed(w http.ResponseWriter, span oteltrace.Span, err error) {
	h.logger.Error("relay failed to reach receiver", slog.Any("error", err))
	span.RecordError(err)
	span.SetStatus(codes.Error, "connect failed")
	h.metrics.RecordRequest(metrics.OutcomeConnectError)
	writeJSON(w, http.StatusBadGateway, errorBody{Error: "Failed to connect to receiver"})
}

// pipe copies the upstream body to the client unmodified, flushing after
// every chunk, until either side closes.
func (h *Handler) pipe(w http.ResponseWriter, r *http.Request, span oteltrace.Span, body io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer cannot stream", slog.Any("error", sse.ErrStreamingUnsupported))
		span.SetStatus(codes.Error, sse.ErrStreamingUnsupported.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Streaming unsupported"})
		return
	}

	h.metrics.RecordRequest(metrics.OutcomeStreamed)
	done := h.metrics.StreamStarted()

	sse.SetStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var written int64
	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				h.logger.Debug("client went away", slog.Any("error", writeErr))
				break
			}
			flusher.Flush()
		}
		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				h.logger.Info("upstream closed stream")
			case r.Context().Err() != nil:
				h.logger.Debug("client disconnected")
			default:
				h.logger.Warn("upstream read failed", slog.Any("error", readErr))
				span.RecordError(readErr)
			}
			break
		}
	}

	span.SetAttributes(attribute.Int64("vibedrive.stream_bytes", written))
	done(written)
}

// nullBodyStatus reports whether a 2xx status can never carry a body. An
// empty 200 is still relayed as an empty stream.
func nullBodyStatus(code int) bool {
	return code == http.StatusNoContent || code == http.StatusResetContent
}

// readPreview returns at most n characters of r.
func readPreview(r io.Reader, n int) string {
	raw, _ := io.ReadAll(io.LimitReader(r, int64(n)*4))
	s := strings.ToValidUTF8(string(raw), "")
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
