// Package server wires the relay and operational endpoints into an HTTP
// server with a start/shutdown lifecycle.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"vibedrive/internal/metrics"
)

// EventsPath is where the relay is mounted.
const EventsPath = "/api/events"

// Config holds the listener settings.
type Config struct {
	Addr string
	H2C  bool
}

// App owns the HTTP server lifecycle.
type App struct {
	server            *http.Server
	listener          net.Listener
	cancelServerScope context.CancelFunc
	logger            *slog.Logger
	ready             atomic.Bool
}

// New builds an App serving events at EventsPath. m may be nil, in which
// case /metrics is not mounted.
func New(cfg Config, events http.Handler, m *metrics.Metrics, logger *slog.Logger) (*App, error) {
	if cfg.Addr == "" {
		return nil, errors.New("new app: empty listen address")
	}
	if events == nil {
		return nil, errors.New("new app: nil events handler")
	}
	if logger == nil {
		return nil, errors.New("new app: nil logger")
	}

	serverScopeCtx, cancelServerScope := context.WithCancel(context.Background())
	a := &App{
		cancelServerScope: cancelServerScope,
		logger:            logger,
	}

	mux := http.NewServeMux()
	mux.Handle(EventsPath, events)
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	handler := requestLoggingMiddleware(logger)(mux)
	if cfg.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return serverScopeCtx
		},
	}
	return a, nil
}

// Listen binds the listener without serving, so callers can learn the
// address before Start.
func (a *App) Listen() (net.Addr, error) {
	if a.listener != nil {
		return a.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return nil, err
	}
	a.listener = ln
	return ln.Addr(), nil
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (a *App) Start() error {
	if _, err := a.Listen(); err != nil {
		return err
	}
	a.ready.Store(true)
	a.logger.Info("relay listening", slog.String("addr", a.listener.Addr().String()))

	err := a.server.Serve(a.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	a.ready.Store(false)
	return err
}

// Shutdown stops accepting requests, cancels in-flight streams and waits
// for handlers to return or ctx to expire.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown: nil context")
	}
	a.ready.Store(false)
	a.cancelServerScope()
	return a.server.Shutdown(ctx)
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writePlain(w, http.StatusOK, "ok")
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !a.ready.Load() {
		writePlain(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writePlain(w, http.StatusOK, "ready")
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
