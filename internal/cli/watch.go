package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vibedrive/internal/config"
	"vibedrive/internal/stream"
	"vibedrive/internal/toolview"
	"vibedrive/internal/ui"
	"vibedrive/internal/ui/textutil"
)

// plainLineWidth caps the detail part of a plain-mode line.
const plainLineWidth = 120

type watchOptions struct {
	url     string
	plain   bool
	logFile string
}

// NewWatchCmd connects to a relay and renders the live session.
func NewWatchCmd(opts *Options) *cobra.Command {
	wo := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the agent session through a relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if wo.url != "" {
				cfg.Watch.URL = wo.url
			}

			// The dashboard owns the terminal, so its logs go to a file or nowhere.
			logOut := cmd.ErrOrStderr()
			if !wo.plain {
				logOut = io.Discard
				if wo.logFile != "" {
					f, err := os.OpenFile(wo.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
					if err != nil {
						return fmt.Errorf("open log file: %w", err)
					}
					defer f.Close()
					logOut = f
				}
			}
			logger, err := newLogger(cfg, logOut)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := newWatcher(cfg, logger)
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			logger.Info("watching", slog.String("url", cfg.Watch.URL))
			if wo.plain {
				return watchPlain(ctx, w, cmd.OutOrStdout())
			}
			return ui.Run(ctx, w)
		},
	}

	cmd.Flags().StringVar(&wo.url, "url", "", "Relay events URL (overrides watch.url)")
	cmd.Flags().BoolVar(&wo.plain, "plain", false, "Print session changes as lines instead of the dashboard")
	cmd.Flags().StringVar(&wo.logFile, "log-file", "", "Write dashboard logs to this file")
	return cmd
}

func newWatcher(cfg *config.Config, logger *slog.Logger) *stream.Watcher {
	return stream.NewWatcher(cfg.Watch.URL,
		stream.WithLogger(logger.With(slog.String("component", "watcher"))),
		stream.WithReconnectDelay(cfg.Watch.ReconnectDelay),
		stream.WithDoneDisplay(cfg.Watch.DoneDisplay),
	)
}

// watchPlain prints one line per observable change until ctx ends.
func watchPlain(ctx context.Context, w *stream.Watcher, out io.Writer) error {
	updates, unsubscribe := w.Subscribe()
	defer unsubscribe()

	var prev stream.Session
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			for _, line := range describeChanges(prev, s) {
				fmt.Fprintln(out, line)
			}
			prev = s
		}
	}
}

// describeChanges lists what changed between two snapshots.
func describeChanges(prev, cur stream.Session) []string {
	var lines []string

	if cur.Connected != prev.Connected {
		if cur.Connected {
			lines = append(lines, "● connected")
		} else {
			lines = append(lines, "○ disconnected")
		}
	}

	newJob := cur.Generation != prev.Generation
	if newJob {
		lines = append(lines, "▶ job started: "+textutil.OneLine(cur.Prompt, plainLineWidth))
		prev = stream.Session{}
	}

	for i, call := range cur.ToolCalls {
		if i >= len(prev.ToolCalls) {
			lines = append(lines, fmt.Sprintf("  %s %s", call.Tool, textutil.OneLine(toolSummary(call), plainLineWidth)))
			if call.Status == stream.ToolRunning {
				continue
			}
		} else if prev.ToolCalls[i].Status == call.Status {
			continue
		}
		if call.Status != stream.ToolRunning {
			lines = append(lines, fmt.Sprintf("  %s %s", call.Tool, call.Status))
		}
	}

	var lastLog uint64
	if n := len(prev.LogLines); n > 0 {
		lastLog = prev.LogLines[n-1].ID
	}
	for _, line := range cur.LogLines {
		if line.ID > lastLog && line.Kind == ui.RawLogKind {
			lines = append(lines, "  | "+textutil.OneLine(line.Text, plainLineWidth))
		}
	}

	if cur.Status != prev.Status && cur.Status == stream.StateDone {
		lines = append(lines, "✓ job finished")
	}
	return lines
}

func toolSummary(call stream.ToolCall) string {
	switch v := toolview.Classify(call).(type) {
	case toolview.ReadView:
		return v.Path
	case toolview.WriteView:
		return v.Path
	case toolview.EditView:
		return v.Path
	case toolview.ShellView:
		return "$ " + v.Command
	case toolview.SearchView:
		return v.Pattern
	case toolview.ListView:
		return v.Path
	default:
		return ""
	}
}
