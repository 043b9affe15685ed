package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vibedrive/internal/config"
	"vibedrive/internal/metrics"
	"vibedrive/internal/relay"
	"vibedrive/internal/server"
	"vibedrive/internal/trace"
)

// NewRelayCmd serves the event relay until interrupted.
func NewRelayCmd(opts *Options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve GET /api/events, relaying the upstream receiver's stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")
	return cmd
}

func runRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tp, err := trace.NewProvider(ctx, trace.Options{
		Endpoint:    cfg.OTel.Endpoint,
		ServiceName: cfg.OTel.ServiceName,
		Insecure:    cfg.OTel.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("trace shutdown failed", slog.Any("error", err))
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	events := relay.New(relay.Config{
		EventsURL:            cfg.Events.URL,
		EventsToken:          cfg.Events.Token,
		CFAccessClientID:     cfg.CFAccess.ClientID,
		CFAccessClientSecret: cfg.CFAccess.ClientSecret,
	},
		relay.WithLogger(logger.With(slog.String("component", "relay"))),
		relay.WithMetrics(m),
		relay.WithTracer(tp.Tracer()),
	)

	app, err := server.New(server.Config{Addr: cfg.ListenAddr, H2C: cfg.H2C}, events, m, logger)
	if err != nil {
		return err
	}

	logger.Info("relay configured",
		slog.Bool("has_events_url", cfg.Events.URL != ""),
		slog.Bool("has_events_token", cfg.Events.Token != ""),
		slog.Bool("cf_access", cfg.CFAccess.Complete()),
		slog.Bool("tracing", tp.Enabled()),
		slog.Bool("metrics", m != nil),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- app.Start()
	}()

	select {
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-serverErrCh; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
