package scenario

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"vibedrive/internal/sse"
)

// DefaultPingInterval is how often idle streams receive a comment.
const DefaultPingInterval = 15 * time.Second

// UpstreamConfig holds the credentials the dev receiver expects.
type UpstreamConfig struct {
	Token string
	// When both are set, requests must carry matching CF-Access headers.
	CFAccessClientID     string
	CFAccessClientSecret string
	PingInterval         time.Duration
}

// Upstream replays a scenario to every client that connects to /events.
type Upstream struct {
	sc     *Scenario
	cfg    UpstreamConfig
	logger *slog.Logger
}

// NewUpstream returns a dev receiver for sc.
func NewUpstream(sc *Scenario, cfg UpstreamConfig, logger *slog.Logger) *Upstream {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Upstream{sc: sc, cfg: cfg, logger: logger}
}

// Handler mounts the receiver at /events.
func (u *Upstream) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /events", u)
	return mux
}

func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !equal(r.URL.Query().Get("token"), u.cfg.Token) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if u.cfg.CFAccessClientID != "" && u.cfg.CFAccessClientSecret != "" {
		if !equal(r.Header.Get("CF-Access-Client-Id"), u.cfg.CFAccessClientID) ||
			!equal(r.Header.Get("CF-Access-Client-Secret"), u.cfg.CFAccessClientSecret) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		u.logger.Error("cannot stream", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	u.logger.Info("client connected", slog.String("scenario", u.sc.Name), slog.String("remote", r.RemoteAddr))
	err = u.replay(r.Context(), sw)
	u.logger.Info("client disconnected", slog.Any("error", err))
}

// replay sends ready, then the scenario steps, until ctx is done or a
// write fails.
func (u *Upstream) replay(ctx context.Context, sw *sse.Writer) error {
	if err := sw.SendRaw("ready", ""); err != nil {
		return err
	}

	ticker := time.NewTicker(u.cfg.PingInterval)
	defer ticker.Stop()

	for {
		for _, step := range u.sc.Steps {
			if err := u.wait(ctx, sw, ticker, step.Delay); err != nil {
				return err
			}
			data, err := step.Payload()
			if err != nil {
				return err
			}
			if err := sw.SendRaw(step.Event, data); err != nil {
				return err
			}
		}

		if !u.sc.Loop {
			return u.idle(ctx, sw, ticker)
		}
		if err := u.wait(ctx, sw, ticker, u.sc.Pause); err != nil {
			return err
		}
	}
}

// wait sleeps for d, sending keep-alive comments on every tick.
func (u *Upstream) wait(ctx context.Context, sw *sse.Writer, ticker *time.Ticker, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := sw.SendComment("ping"); err != nil {
				return err
			}
		case <-timer.C:
			return nil
		}
	}
}

// idle keeps the stream open with pings until ctx is done.
func (u *Upstream) idle(ctx context.Context, sw *sse.Writer, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := sw.SendComment("ping"); err != nil {
				return err
			}
		}
	}
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
