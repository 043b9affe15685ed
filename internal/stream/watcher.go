package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"vibedrive/internal/sse"
)

const (
	// DefaultReconnectDelay is the flat wait between connection attempts.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultDoneDisplay is how long a finished job stays in the done state.
	DefaultDoneDisplay = 4 * time.Second

	maxRejectBodyBytes = 512
)

var (
	// ErrStreamRejected is returned when the relay answers with a non-200
	// status or a non event-stream body.
	ErrStreamRejected = errors.New("event stream rejected")
	// ErrAlreadyRunning is returned by Start on a running watcher.
	ErrAlreadyRunning = errors.New("watcher already running")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithHTTPClient sets the client used for the stream request. The client
// should not carry a timeout; streams are long-lived.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Watcher) {
		if client != nil {
			w.client = client
		}
	}
}

// WithLogger sets the logger for connection and payload diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithReconnectDelay sets the flat delay between attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.reconnect = backoff.NewConstantBackOff(d)
		}
	}
}

// WithDoneDisplay sets how long done is shown before returning to idle.
func WithDoneDisplay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.doneDisplay = d
		}
	}
}

// Watcher keeps one streaming connection to the relay, reduces its events
// and publishes session snapshots. At most one connection attempt is in
// flight at a time.
type Watcher struct {
	url         string
	client      *http.Client
	logger      *slog.Logger
	reconnect   *backoff.ConstantBackOff
	doneDisplay time.Duration

	mu        sync.Mutex // guards reducer, doneTimer, subs, attempts
	reducer   *Reducer
	doneTimer *time.Timer
	subs      map[chan Session]struct{}
	attempts  uint64

	lifecycle sync.Mutex // guards parent, cancel, finished
	parent    context.Context
	cancel    context.CancelFunc
	finished  chan struct{}
}

// NewWatcher creates a stopped watcher for the relay endpoint at url.
func NewWatcher(url string, opts ...Option) *Watcher {
	w := &Watcher{
		url:         url,
		client:      &http.Client{},
		logger:      slog.New(slog.DiscardHandler),
		reconnect:   backoff.NewConstantBackOff(DefaultReconnectDelay),
		doneDisplay: DefaultDoneDisplay,
		subs:        make(map[chan Session]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.reducer = NewReducer(w.logger)
	return w
}

// Start begins connecting in the background. The watcher runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.cancel != nil {
		return ErrAlreadyRunning
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.parent = ctx
	w.cancel = cancel
	w.finished = make(chan struct{})

	go w.run(runCtx, w.finished)
	return nil
}

// Stop cancels the in-flight connection, suppresses reconnection and waits
// for the background loop to exit. It is safe to call on a stopped watcher.
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	w.stopLocked()
}

func (w *Watcher) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.finished
	w.cancel = nil
	w.finished = nil

	w.mu.Lock()
	if w.doneTimer != nil {
		w.doneTimer.Stop()
		w.doneTimer = nil
	}
	w.mu.Unlock()
}

// Restart tears the connection down and starts a fresh one with the context
// given to the last Start.
func (w *Watcher) Restart() error {
	w.lifecycle.Lock()
	parent := w.parent
	w.stopLocked()
	w.lifecycle.Unlock()

	if parent == nil {
		parent = context.Background()
	}
	return w.Start(parent)
}

// Snapshot returns a copy of the current session.
func (w *Watcher) Snapshot() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reducer.Snapshot()
}

// Attempts returns the number of connection attempts made so far.
func (w *Watcher) Attempts() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

// Subscribe returns a channel that always holds the latest snapshot; older
// undelivered snapshots are replaced rather than queued. The returned func
// unsubscribes and closes the channel.
func (w *Watcher) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 1)

	w.mu.Lock()
	w.subs[ch] = struct{}{}
	ch <- w.reducer.Snapshot()
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, ch)
			w.mu.Unlock()
			close(ch)
		})
	}
}

func (w *Watcher) run(ctx context.Context, finished chan<- struct{}) {
	defer close(finished)
	w.reconnect.Reset()

	for {
		w.update(func(r *Reducer) {
			r.Connecting()
			w.attempts++
		})

		err := w.stream(ctx)
		if ctx.Err() != nil {
			w.logger.Debug("event stream cancelled")
			return
		}

		w.update(func(r *Reducer) { r.Disconnected() })
		delay := w.reconnect.NextBackOff()
		if err != nil && !errors.Is(err, io.EOF) {
			w.logger.Warn("event stream failed",
				slog.Any("error", err),
				slog.Duration("retry_in", delay),
			)
		} else {
			w.logger.Info("event stream closed", slog.Duration("retry_in", delay))
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream performs one connection attempt and reads until the stream ends.
func (w *Watcher) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return fmt.Errorf("new stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	w.logger.Debug("connecting to event stream", slog.String("url", w.url))
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRejectBodyBytes))
		return fmt.Errorf("%w: status=%d body=%s", ErrStreamRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "text/event-stream" {
		return fmt.Errorf("%w: content type %q", ErrStreamRejected, resp.Header.Get("Content-Type"))
	}

	w.logger.Info("event stream opened")
	w.update(func(r *Reducer) { r.Opened() })

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			return err
		}
		w.apply(ev)
	}
}

func (w *Watcher) apply(ev sse.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res := w.reducer.Apply(ev)
	if res.JobFinished {
		w.scheduleDoneLocked(w.reducer.Generation())
	}
	if res.Changed {
		w.publishLocked()
	}
}

func (w *Watcher) scheduleDoneLocked(generation uint64) {
	if w.doneTimer != nil {
		w.doneTimer.Stop()
	}
	w.doneTimer = time.AfterFunc(w.doneDisplay, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.reducer.FinishDisplay(generation) {
			w.publishLocked()
		}
	})
}

func (w *Watcher) update(fn func(r *Reducer)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.reducer)
	w.publishLocked()
}

// publishLocked hands the latest snapshot to every subscriber without
// blocking the stream goroutine.
func (w *Watcher) publishLocked() {
	if len(w.subs) == 0 {
		return
	}
	snap := w.reducer.Snapshot()
	for ch := range w.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
