package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/bugledger/internal/config"
	"github.com/Mschirtzinger/bugledger/internal/daemon"
	"github.com/Mschirtzinger/bugledger/internal/dashboard"
	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/present"
	"github.com/Mschirtzinger/bugledger/internal/ui"
)

func newWatchCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "advanced",
		Short:   "Serve a live dashboard of the ledger",
		Long: `Keep a live projection of the ledger and serve it as a dashboard.

The projection is reloaded after every command, every refresh interval
(daemon.refresh_interval), and, for the embedded driver, whenever another
process writes to the ledger file.

Endpoints:
  /ws                           WebSocket stream (projection, command_result,
                                load_error, stats)
  /health                       health check
  GET    /api/bugs              current bugs
  POST   /api/bugs              add a bug {"id", "description", "criticality"}
  POST   /api/bugs/{index}/resolve
  DELETE /api/bugs/{index}
  POST   /api/refresh

Example usage:
  bugs watch                     # Start on the configured port
  bugs watch --port 9000         # Start on a custom port`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				port, _ := cmd.Flags().GetInt("port")
				opts.config.Dashboard.Port = port
			}
			if err := opts.config.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runWatch(ctx, cmd, opts)
		},
	}

	cmd.Flags().Int("port", 0, "dashboard port (default dashboard.port)")
	return cmd
}

// runWatch runs the dashboard until ctx is done.
func runWatch(ctx context.Context, cmd *cobra.Command, opts *RootOptions) error {
	cfg := opts.config
	out := cmd.OutOrStdout()

	server := dashboard.NewServer(&dashboard.Config{
		Port:   cfg.Dashboard.Port,
		Logger: opts.logger("dashboard"),
	})
	handler := dashboard.NewHandler(server, opts.logger("dashboard"))

	e, err := engine.Start(ctx, opts.dialer(), cfg.Endpoint(), opts.engineConfig(), handler)
	if engine.IsFatal(err) {
		return err
	}
	if err != nil {
		// Keep serving; the next refresh may succeed
		fmt.Fprintf(cmd.ErrOrStderr(), "%s Initial load failed: %v\n", ui.RenderWarn("⚠"), err)
	}
	defer e.Close()

	server.Handle("/api/", dashboard.NewAPI(present.NewActions(e), opts.logger("dashboard")))

	dcfg := &daemon.Config{
		RefreshInterval:  cfg.Daemon.RefreshInterval.Std(),
		DebounceInterval: cfg.Daemon.DebounceInterval.Std(),
		Services:         []daemon.Service{server},
		Logger:           opts.logger("daemon"),
	}
	if cfg.Ledger.Driver == config.DriverEmbedded {
		dcfg.WatchPath = cfg.Embedded.Path
	}

	d, err := daemon.NewWithConfig(e, dcfg)
	if err != nil {
		return err
	}

	started := make(chan error, 1)
	go func() { started <- d.Start(ctx) }()

	fmt.Fprintf(out, "%s Watching %s (%d bugs)\n", ui.RenderAccent("🚀"), e.Session().Endpoint(), e.Projection().Len())
	fmt.Fprintf(out, "Dashboard: http://localhost:%d\n", cfg.Dashboard.Port)
	fmt.Fprintf(out, "WebSocket: ws://localhost:%d/ws\n", cfg.Dashboard.Port)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop...")

	if err := <-started; err != nil {
		return err
	}
	fmt.Fprintln(out, "Stopped")
	return nil
}
