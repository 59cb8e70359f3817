package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/quorum/pkg/audit/archive"
	"mercator-hq/quorum/pkg/cli"
	"mercator-hq/quorum/pkg/config"
	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/server"
	"mercator-hq/quorum/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Quorum ops server",
	Long: `Start the long-running Quorum process.

The process serves health, readiness and metrics endpoints, imports the
configured vendor catalog, hot-reloads the policy table when policy.watch is
set or on SIGHUP, and archives the audit trail on the configured schedule.

Examples:
  # Start with built-in defaults
  quorum run

  # Start with a config file
  quorum run --config /etc/quorum/config.yaml

  # Override listen address
  quorum run --listen 0.0.0.0:9090

  # Validate config without starting
  quorum run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServer(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	cfg, err := config.Override(func(c *config.Config) {
		if runFlags.listenAddress != "" {
			c.Server.ListenAddress = runFlags.listenAddress
		}
		if runFlags.logLevel != "" {
			c.Telemetry.Logging.Level = runFlags.logLevel
		}
	})
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	return serve(ctx, a)
}

// serve runs the ops server and background jobs until ctx is cancelled or
// one of them fails.
func serve(ctx context.Context, a *app) error {
	logger := a.logger.Slog()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n, err := a.importCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to import vendor catalog: %w", err)
	}
	if n > 0 {
		logger.Info("vendor catalog imported", "path", a.cfg.Vendors.CatalogPath, "vendors", n)
	}

	checker := health.New(5 * time.Second)
	checker.Register("workflow_store", health.PingCheck(a.store))
	checker.Register("audit_storage", health.PingCheck(a.auditStore))
	checker.Register("policy", func(context.Context) error {
		if a.policies.Current() == nil {
			return errors.New("no policy table loaded")
		}
		return nil
	})

	path := a.cfg.Policy.FilePath
	recordReload := func(reloadErr error) {
		a.collector.RecordPolicyReload(reloadErr)
		if err := a.engine.RecordPolicyReload(ctx, path, reloadErr); err != nil {
			logger.Warn("failed to record policy reload", "error", err)
		}
	}

	watchErr := make(chan error, 1)
	if a.cfg.Policy.Watch {
		w, err := policy.NewWatcher(policy.WatcherConfig{
			Path:             path,
			DebounceInterval: a.cfg.Policy.DebounceInterval,
		}, a.policies, logger.With("component", "policy.watcher"))
		if err != nil {
			return err
		}
		w.OnReload(func(_ *policy.Table, reloadErr error) { recordReload(reloadErr) })
		go func() {
			if err := w.Watch(ctx); err != nil {
				watchErr <- fmt.Errorf("policy watcher: %w", err)
			}
		}()
	}
	if path != "" {
		cli.OnHangup(ctx, func() {
			err := a.policies.Reload(path)
			if err != nil {
				logger.Error("policy reload on SIGHUP failed, keeping previous table", "error", err)
			} else {
				logger.Info("policy reloaded on SIGHUP", "path", path)
			}
			recordReload(err)
		})
	}

	if arch := a.cfg.Audit.Archive; arch.Enabled {
		archiver, err := archive.NewArchiver(a.auditStore, &archive.Config{
			Schedule:  arch.Schedule,
			Path:      arch.Path,
			Format:    arch.Format,
			BatchSize: arch.BatchSize,
		})
		if err != nil {
			return err
		}
		scheduler := archive.NewScheduler(archiver)
		scheduler.OnRun(func(res *archive.Result, err error) {
			entries := 0
			if res != nil {
				entries = res.Entries
			}
			a.collector.RecordArchive(entries, err)
		})
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	opts := []server.Option{
		server.WithVersion(Version, GitCommit, BuildDate),
		server.WithLogger(logger.With("component", "server")),
	}
	if a.collector.Enabled() {
		opts = append(opts, server.WithMetrics(a.collector, a.cfg.Telemetry.Metrics.Path))
	}
	srv := server.New(a.cfg.Server, checker, opts...)

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start(ctx) }()

	select {
	case err := <-serverErr:
		return err
	case err := <-watchErr:
		cancel()
		<-serverErr
		return err
	}
}
