package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "storage.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// holding every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Policy.Watch && cfg.Policy.FilePath == "" {
		errs = append(errs, FieldError{"policy.watch", "requires policy.file_path"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err)})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must be positive"})
	}
	if tls := cfg.TLS; tls.Enabled {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, FieldError{"server.tls", "cert_file and key_file are required when TLS is enabled"})
		}
		if tls.MinVersion != "1.2" && tls.MinVersion != "1.3" {
			errs = append(errs, FieldError{"server.tls.min_version", fmt.Sprintf("unsupported version %q (want 1.2 or 1.3)", tls.MinVersion)})
		}
		if tls.ReloadInterval <= 0 {
			errs = append(errs, FieldError{"server.tls.reload_interval", "must be positive"})
		}
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"storage.sqlite.path", "is required for the sqlite backend"})
		}
		if cfg.SQLite.CheckpointInterval < 0 {
			errs = append(errs, FieldError{"storage.sqlite.checkpoint_interval", "must not be negative"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{"storage.postgres.dsn", "is required for the postgres backend"})
		}
		if cfg.Postgres.MaxOpenConns < 1 {
			errs = append(errs, FieldError{"storage.postgres.max_open_conns", "must be at least 1"})
		}
		if cfg.Postgres.ConnectAttempts < 1 {
			errs = append(errs, FieldError{"storage.postgres.connect_attempts", "must be at least 1"})
		}
	default:
		errs = append(errs, FieldError{"storage.backend", fmt.Sprintf("unknown backend %q (want memory, sqlite or postgres)", cfg.Backend)})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"audit.sqlite.path", "is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"audit.backend", fmt.Sprintf("unknown backend %q (want memory or sqlite)", cfg.Backend)})
	}
	if cfg.MaxDetailLength < 0 {
		errs = append(errs, FieldError{"audit.max_detail_length", "must not be negative"})
	}

	if a := cfg.Archive; a.Enabled {
		if _, err := cron.ParseStandard(a.Schedule); err != nil {
			errs = append(errs, FieldError{"audit.archive.schedule", fmt.Sprintf("invalid cron expression %q: %v", a.Schedule, err)})
		}
		if a.Path == "" {
			errs = append(errs, FieldError{"audit.archive.path", "is required when archiving is enabled"})
		}
		if a.BatchSize < 1 {
			errs = append(errs, FieldError{"audit.archive.batch_size", "must be at least 1"})
		}
	}
	if f := cfg.Archive.Format; f != "json" && f != "csv" {
		errs = append(errs, FieldError{"audit.archive.format", fmt.Sprintf("unknown format %q (want json or csv)", f)})
	}

	if n := cfg.NATS; n.Enabled {
		u, err := url.Parse(n.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{"audit.nats.url", fmt.Sprintf("invalid URL %q", n.URL)})
		}
		if n.SubjectPrefix == "" || strings.ContainsAny(n.SubjectPrefix, " *>") {
			errs = append(errs, FieldError{"audit.nats.subject_prefix", fmt.Sprintf("invalid subject prefix %q", n.SubjectPrefix)})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Name == "" || p.Pattern == "" {
			errs = append(errs, FieldError{fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i), "name and pattern are required"})
		}
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with /"})
	}
	return errs
}
