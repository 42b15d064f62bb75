package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"claimforge/compliance/pkg/cli"
	"claimforge/compliance/pkg/ingest/schedule"
	"claimforge/compliance/pkg/server"
	"claimforge/compliance/pkg/telemetry/health"
	"claimforge/compliance/pkg/telemetry/logging"
)

const healthCheckTimeout = 5 * time.Second

var (
	serveEnsureReady bool
	serveProbeRPS    float64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health probes and metrics and keep the rule store fresh",
	Long: `Run the ops HTTP server. /readyz reports ready once the rule store holds
PTP edits, /healthz reports liveness and the metrics path serves Prometheus
metrics. When refresh.schedule is set the store is rebuilt on that cron
schedule, and when refresh.watch_local is set changes to configured
local_path files trigger a rebuild of their kinds.`,
	Example: `  claimforge serve --config claimforge.yaml
  claimforge serve --ensure-ready`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveEnsureReady, "ensure-ready", false, "build the rule store at startup if it is empty")
	serveCmd.Flags().Float64Var(&serveProbeRPS, "probe-rps", 10, "rate limit for /readyz requests per second (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	checker := health.New(healthCheckTimeout)
	checker.RegisterCheck("rule_store", a.gate.Check)
	checker.RegisterInformational("store_ping", a.store.Ping)
	checker.RegisterInformational("mirror", a.mirror.Check)

	mux := http.NewServeMux()
	health.Mount(mux, checker, serveProbeRPS, Version, GitCommit, BuildDate)
	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(cfg.Telemetry.Metrics.Path, a.metrics.Handler())
	}

	if serveEnsureReady {
		go ensureReady(ctx, a)
	}

	scheduler := schedule.NewScheduler(cfg.Refresh, a.gate)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer scheduler.Stop()

	if cfg.Refresh.WatchLocal {
		watcher, err := schedule.NewInboxWatcher(cfg.Sources, cfg.Refresh, a.gate)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Slog().Error("local source watcher stopped", "error", err)
			}
		}()
	}

	srv := server.NewServer(&cfg.Server, mux)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

func ensureReady(ctx context.Context, a *app) {
	ctx = logging.WithTrigger(ctx, "startup")
	if cfg.Refresh.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Refresh.BuildTimeout)
		defer cancel()
	}

	report, err := a.gate.EnsureReady(ctx)
	switch {
	case err != nil:
		logger.Slog().ErrorContext(ctx, "startup rebuild failed", "error", err)
	case report != nil:
		logger.Slog().InfoContext(ctx, "startup rebuild completed",
			"build_id", report.BuildID,
			"rows", report.Rows(),
		)
	}
}
