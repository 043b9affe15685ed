package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vibedrive/internal/scenario"
)

type upstreamOptions struct {
	addr     string
	scenario string
	ping     time.Duration
}

// NewUpstreamCmd serves a scripted receiver for local development.
func NewUpstreamCmd(opts *Options) *cobra.Command {
	uo := &upstreamOptions{}

	cmd := &cobra.Command{
		Use:   "upstream",
		Short: "Serve a scripted /events receiver for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sc := scenario.Default()
			if uo.scenario != "" {
				if sc, err = scenario.Load(uo.scenario); err != nil {
					return err
				}
			}

			up := scenario.NewUpstream(sc, scenario.UpstreamConfig{
				Token:                cfg.Events.Token,
				CFAccessClientID:     cfg.CFAccess.ClientID,
				CFAccessClientSecret: cfg.CFAccess.ClientSecret,
				PingInterval:         uo.ping,
			}, logger.With(slog.String("component", "upstream")))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("serving scenario",
				slog.String("addr", uo.addr),
				slog.String("scenario", sc.Name),
				slog.Int("steps", len(sc.Steps)),
			)
			return serveUntilDone(ctx, &http.Server{
				Addr:              uo.addr,
				Handler:           up.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(_ net.Listener) context.Context { return ctx },
			}, cfg.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&uo.addr, "addr", ":8787", "Listen address")
	cmd.Flags().StringVar(&uo.scenario, "scenario", "", "Scenario YAML file (default: built-in demo)")
	cmd.Flags().DurationVar(&uo.ping, "ping", scenario.DefaultPingInterval, "Keep-alive comment interval")
	return cmd
}

func serveUntilDone(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return <-errCh
}
