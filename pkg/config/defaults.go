package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultTLSMinVersion     = "1.3"
	DefaultTLSReloadInterval = 5 * time.Minute

	// Policy defaults
	DefaultPolicyDebounce = 200 * time.Millisecond

	// Storage defaults
	DefaultStorageBackend          = "sqlite"
	DefaultStorageSQLitePath       = "data/quorum.db"
	DefaultSQLiteBusyTimeout       = 5 * time.Second
	DefaultStorageCheckpoint       = 5 * time.Minute
	DefaultPostgresMaxOpenConns    = 10
	DefaultPostgresConnectAttempts = 5
	DefaultPostgresRetryDelay      = 2 * time.Second

	// Audit defaults
	DefaultAuditBackend         = "sqlite"
	DefaultAuditSQLitePath      = "data/audit.db"
	DefaultAuditWriteTimeout    = 5 * time.Second
	DefaultAuditMaxDetailLength = 2000
	DefaultArchiveSchedule      = "0 3 * * *"
	DefaultArchivePath          = "data/archives/"
	DefaultArchiveFormat        = "json"
	DefaultArchiveBatchSize     = 5000
	DefaultNATSURL              = "nats://127.0.0.1:4222"
	DefaultNATSSubjectPrefix    = "quorum.audit"
	DefaultNATSConnectTimeout   = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "quorum"
)

// Default returns a configuration with every default applied, including
// the boolean defaults that ApplyDefaults cannot infer from zero values.
// LoadConfig decodes the file on top of it.
func Default() *Config {
	cfg := &Config{}
	cfg.Telemetry.Logging.RedactPII = DefaultLoggingRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReloadInterval
	}

	if cfg.Policy.DebounceInterval == 0 {
		cfg.Policy.DebounceInterval = DefaultPolicyDebounce
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultStorageSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.SQLite.CheckpointInterval == 0 {
		cfg.Storage.SQLite.CheckpointInterval = DefaultStorageCheckpoint
	}
	if cfg.Storage.Postgres.MaxOpenConns == 0 {
		cfg.Storage.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Storage.Postgres.ConnectAttempts == 0 {
		cfg.Storage.Postgres.ConnectAttempts = DefaultPostgresConnectAttempts
	}
	if cfg.Storage.Postgres.RetryDelay == 0 {
		cfg.Storage.Postgres.RetryDelay = DefaultPostgresRetryDelay
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.MaxDetailLength == 0 {
		cfg.Audit.MaxDetailLength = DefaultAuditMaxDetailLength
	}
	applyArchiveDefaults(&cfg.Audit.Archive)
	applyNATSDefaults(&cfg.Audit.NATS)

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

func applyArchiveDefaults(a *ArchiveConfig) {
	if a.Schedule == "" {
		a.Schedule = DefaultArchiveSchedule
	}
	if a.Path == "" {
		a.Path = DefaultArchivePath
	}
	if a.Format == "" {
		a.Format = DefaultArchiveFormat
	}
	if a.BatchSize == 0 {
		a.BatchSize = DefaultArchiveBatchSize
	}
}

func applyNATSDefaults(n *NATSConfig) {
	if n.URL == "" {
		n.URL = DefaultNATSURL
	}
	if n.SubjectPrefix == "" {
		n.SubjectPrefix = DefaultNATSSubjectPrefix
	}
	if n.ConnectTimeout == 0 {
		n.ConnectTimeout = DefaultNATSConnectTimeout
	}
}
