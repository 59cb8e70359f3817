package config

import (
	"time"

	"mercator-hq/quorum/pkg/telemetry/logging"
)

// Config is the root configuration structure for quorum. It covers the
// ops server, the policy table source, workflow storage, the audit trail,
// the vendor catalog, procurement templates and telemetry.
type Config struct {
	// Server contains the ops HTTP server configuration (health, readiness
	// and metrics endpoints).
	Server ServerConfig `yaml:"server"`

	// Policy locates the policy table and controls hot reload.
	Policy PolicyConfig `yaml:"policy"`

	// Storage selects and configures the workflow store that holds
	// proposals, approval steps, orders and vendors.
	Storage StorageConfig `yaml:"storage"`

	// Audit configures the append-only audit trail, its archive and the
	// optional NATS mirror.
	Audit AuditConfig `yaml:"audit"`

	// Vendors configures the vendor catalog.
	Vendors VendorsConfig `yaml:"vendors"`

	// Procurement configures purchase order generation.
	Procurement ProcurementConfig `yaml:"procurement"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the ops HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is how long keep-alive connections stay open.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS serves the ops endpoints over HTTPS.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures TLS for the ops server.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM files. Both are re-read when they change.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile enables mutual TLS: clients must present a certificate
	// signed by one of these CAs.
	ClientCAFile string `yaml:"client_ca_file"`

	// ReloadInterval is how often the certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// PolicyConfig locates the policy table.
type PolicyConfig struct {
	// FilePath is the YAML policy table. Empty uses the built-in table.
	FilePath string `yaml:"file_path"`

	// Watch reloads the table when FilePath changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a reload.
	// Default: 200ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// StorageConfig selects the workflow store.
type StorageConfig struct {
	// Backend is "memory", "sqlite" or "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures an SQLite database file.
type SQLiteConfig struct {
	// Path is the database file.
	Path string `yaml:"path"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is the WAL checkpoint period for the workflow
	// store. Zero disables periodic checkpoints.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// PostgresConfig configures the Postgres workflow store.
type PostgresConfig struct {
	// DSN is a libpq connection string or URL. Required for the postgres
	// backend.
	DSN string `yaml:"dsn"`

	// MaxOpenConns caps the pool.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// ConnectAttempts is how many times the initial connection is tried.
	// Default: 5
	ConnectAttempts int `yaml:"connect_attempts"`

	// RetryDelay is the pause between connection attempts.
	// Default: 2s
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite SQLiteConfig `yaml:"sqlite"`

	// WriteTimeout bounds a single append.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxDetailLength truncates long string details.
	// Default: 2000
	MaxDetailLength int `yaml:"max_detail_length"`

	Archive ArchiveConfig `yaml:"archive"`
	NATS    NATSConfig    `yaml:"nats"`
}

// ArchiveConfig configures the scheduled audit archive.
type ArchiveConfig struct {
	// Enabled starts the archive scheduler with the run command.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// Path is the archive directory.
	// Default: "data/archives/"
	Path string `yaml:"path"`

	// Format is "json" or "csv".
	// Default: "json"
	Format string `yaml:"format"`

	// BatchSize bounds the entries read per query.
	// Default: 5000
	BatchSize int `yaml:"batch_size"`
}

// NATSConfig configures mirroring of audit entries to NATS.
type NATSConfig struct {
	Enabled bool `yaml:"enabled"`

	// URL is the server URL.
	// Default: "nats://127.0.0.1:4222"
	URL string `yaml:"url"`

	// SubjectPrefix is prepended to the action name.
	// Default: "quorum.audit"
	SubjectPrefix string `yaml:"subject_prefix"`

	// ConnectTimeout bounds the initial connection.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// VendorsConfig configures the vendor catalog.
type VendorsConfig struct {
	// CatalogPath is a YAML catalog imported when the server starts.
	// Empty skips the import.
	CatalogPath string `yaml:"catalog_path"`
}

// ProcurementConfig configures purchase order generation.
type ProcurementConfig struct {
	// TemplatesPath is a YAML file of per-category line templates. Empty
	// uses the built-in templates.
	TemplatesPath string `yaml:"templates_path"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in records.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks e-mail addresses and phone numbers.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns are extra redaction rules.
	RedactPatterns []logging.Pattern `yaml:"redact_patterns"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled registers collectors and serves Path.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the scrape endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "quorum"
	Namespace string `yaml:"namespace"`
}

// LoggerConfig converts the logging section into a logging.Config.
func (c LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:          c.Level,
		Format:         c.Format,
		AddSource:      c.AddSource,
		RedactPII:      c.RedactPII,
		RedactPatterns: c.RedactPatterns,
	}
}
