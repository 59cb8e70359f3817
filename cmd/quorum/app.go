package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/quorum/pkg/audit"
	"mercator-hq/quorum/pkg/audit/publish"
	"mercator-hq/quorum/pkg/audit/recorder"
	auditstorage "mercator-hq/quorum/pkg/audit/storage"
	"mercator-hq/quorum/pkg/cli"
	"mercator-hq/quorum/pkg/config"
	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/telemetry/logging"
	"mercator-hq/quorum/pkg/telemetry/metrics"
	"mercator-hq/quorum/pkg/vendor"
	"mercator-hq/quorum/pkg/workflow"
	"mercator-hq/quorum/pkg/workflow/storage"
)

// systemActor is recorded for operations the process performs on its own.
const systemActor = "system"

// app holds the components every command works with.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	policies   *policy.Holder
	store      workflow.Store
	auditStore audit.Storage
	recorder   *recorder.Recorder
	collector  *metrics.Collector
	engine     *workflow.Engine
}

// loadConfig initializes the process configuration from --config.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.GetConfig(), nil
}

// openApp loads the configuration and builds the app from it.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

// newApp builds every component from cfg. On error, anything already
// opened is closed.
func newApp(cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logCfg := cfg.Telemetry.Logging.LoggerConfig()
	if verbose {
		logCfg.Level = "debug"
	}
	a.logger, err = logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(a.logger.Slog())

	table := policy.Default()
	if cfg.Policy.FilePath != "" {
		if table, err = policy.LoadFile(cfg.Policy.FilePath); err != nil {
			return nil, err
		}
	}
	a.policies = policy.NewHolder(table)

	if a.store, err = openStore(cfg.Storage); err != nil {
		return nil, err
	}
	if a.auditStore, err = openAuditStorage(cfg.Audit); err != nil {
		return nil, err
	}

	recorderConfig := recorder.DefaultConfig()
	recorderConfig.WriteTimeout = cfg.Audit.WriteTimeout
	recorderConfig.MaxDetailLength = cfg.Audit.MaxDetailLength
	var recOpts []recorder.Option
	if cfg.Audit.NATS.Enabled {
		pub, err := publish.Connect(&publish.Config{
			URL:            cfg.Audit.NATS.URL,
			SubjectPrefix:  cfg.Audit.NATS.SubjectPrefix,
			Name:           "quorum",
			ConnectTimeout: cfg.Audit.NATS.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		recOpts = append(recOpts, recorder.WithPublisher(pub))
	}
	a.recorder = recorder.NewRecorder(a.auditStore, recorderConfig, recOpts...)

	templates := procurement.DefaultTemplates()
	if path := cfg.Procurement.TemplatesPath; path != "" {
		if templates, err = procurement.LoadTemplates(path); err != nil {
			return nil, cli.NewConfigError("procurement.templates_path", err.Error())
		}
	}

	a.collector = metrics.NewCollector(metrics.Config{
		Enabled:        cfg.Telemetry.Metrics.Enabled,
		Namespace:      cfg.Telemetry.Metrics.Namespace,
		ProcessMetrics: true,
	}, nil)

	a.engine = workflow.NewEngine(a.store, a.recorder, a.policies,
		workflow.WithDirectory(workflow.PolicyDirectory{Policies: a.policies}),
		workflow.WithScorer(vendor.NewScorer()),
		workflow.WithPlanner(procurement.NewPlanner(templates)),
		workflow.WithObserver(a.collector),
		workflow.WithLogger(a.logger.Slog().With("component", "workflow.engine")),
	)
	return a, nil
}

func openStore(cfg config.StorageConfig) (workflow.Store, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		s, err := storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:               cfg.SQLite.Path,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open workflow store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := storage.NewPostgresStore(&storage.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			ConnectAttempts: cfg.Postgres.ConnectAttempts,
			RetryDelay:      cfg.Postgres.RetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open workflow store: %w", err)
		}
		return s, nil
	default:
		return nil, cli.NewConfigError("storage.backend", fmt.Sprintf("unsupported backend %q", cfg.Backend))
	}
}

func openAuditStorage(cfg config.AuditConfig) (audit.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return auditstorage.NewMemoryStorage(), nil
	case "sqlite":
		sqliteConfig := auditstorage.DefaultSQLiteConfig()
		sqliteConfig.Path = cfg.SQLite.Path
		sqliteConfig.BusyTimeout = cfg.SQLite.BusyTimeout
		s, err := auditstorage.NewSQLiteStorage(sqliteConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit storage: %w", err)
		}
		return s, nil
	default:
		return nil, cli.NewConfigError("audit.backend", fmt.Sprintf("unsupported backend %q", cfg.Backend))
	}
}

// importCatalog loads the configured vendor catalog, if any, into the store.
func (a *app) importCatalog(ctx context.Context) (int, error) {
	path := a.cfg.Vendors.CatalogPath
	if path == "" {
		return 0, nil
	}
	vendors, err := vendor.LoadCatalog(path)
	if err != nil {
		return 0, err
	}
	if err := a.engine.ImportVendors(ctx, vendors, systemActor); err != nil {
		return 0, err
	}
	return len(vendors), nil
}

// Close releases every component in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	}
	if a.auditStore != nil {
		errs = append(errs, a.auditStore.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
