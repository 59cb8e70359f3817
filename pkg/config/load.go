package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUORUM_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Fields missing from the file keep their defaults. The result is validated.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from path and applies
// environment overrides named QUORUM_SECTION_FIELD (for example
// QUORUM_STORAGE_BACKEND). An empty path starts from Default.
//
// A .env file next to the configuration file (or in the working directory
// when path is empty) is loaded first. Variables already set in the
// environment win over the .env file, and both win over the YAML file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	envFile := ".env"
	if path != "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment file %q: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Unparseable
// values are reported together as a ValidationError.
func applyEnvOverrides(cfg *Config) error {
	o := &overrides{}

	// Server overrides
	o.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	o.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	o.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	o.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	o.boolean("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	o.str("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	o.str("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)

	// Policy overrides
	o.str("POLICY_FILE_PATH", &cfg.Policy.FilePath)
	o.boolean("POLICY_WATCH", &cfg.Policy.Watch)

	// Storage overrides
	o.str("STORAGE_BACKEND", &cfg.Storage.Backend)
	o.str("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	o.duration("STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)
	o.str("STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	o.integer("STORAGE_POSTGRES_MAX_OPEN_CONNS", &cfg.Storage.Postgres.MaxOpenConns)

	// Audit overrides
	o.str("AUDIT_BACKEND", &cfg.Audit.Backend)
	o.str("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	o.boolean("AUDIT_ARCHIVE_ENABLED", &cfg.Audit.Archive.Enabled)
	o.str("AUDIT_ARCHIVE_SCHEDULE", &cfg.Audit.Archive.Schedule)
	o.str("AUDIT_ARCHIVE_PATH", &cfg.Audit.Archive.Path)
	o.str("AUDIT_ARCHIVE_FORMAT", &cfg.Audit.Archive.Format)
	o.boolean("AUDIT_NATS_ENABLED", &cfg.Audit.NATS.Enabled)
	o.str("AUDIT_NATS_URL", &cfg.Audit.NATS.URL)
	o.str("AUDIT_NATS_SUBJECT_PREFIX", &cfg.Audit.NATS.SubjectPrefix)

	o.str("VENDORS_CATALOG_PATH", &cfg.Vendors.CatalogPath)
	o.str("PROCUREMENT_TEMPLATES_PATH", &cfg.Procurement.TemplatesPath)

	// Telemetry overrides
	o.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	o.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	o.boolean("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	o.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	o.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)

	if len(o.errs) > 0 {
		return ValidationError{Errors: o.errs}
	}
	return nil
}

// overrides reads QUORUM_ variables into config fields.
type overrides struct {
	errs []FieldError
}

func (o *overrides) lookup(name string) (string, bool) {
	v := os.Getenv(EnvPrefix + name)
	return v, v != ""
}

func (o *overrides) fail(name, val string, err error) {
	o.errs = append(o.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("invalid value %q: %v", val, err),
	})
}

func (o *overrides) str(name string, dst *string) {
	if v, ok := o.lookup(name); ok {
		*dst = v
	}
}

func (o *overrides) duration(name string, dst *time.Duration) {
	if v, ok := o.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			o.fail(name, v, err)
			return
		}
		*dst = d
	}
}

func (o *overrides) integer(name string, dst *int) {
	if v, ok := o.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			o.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (o *overrides) boolean(name string, dst *bool) {
	if v, ok := o.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			o.fail(name, v, err)
			return
		}
		*dst = b
	}
}
