package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/quorum/pkg/telemetry/logging"
)

func TestValidate_Default(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()) = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "nope" }, "server.listen_address"},
		{"zero shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "server.shutdown_timeout"},
		{"tls without cert", func(c *Config) { c.Server.TLS.Enabled = true }, "server.tls"},
		{"tls 1.1", func(c *Config) {
			c.Server.TLS = TLSConfig{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem", MinVersion: "1.1", ReloadInterval: time.Minute}
		}, "server.tls.min_version"},
		{"watch without file", func(c *Config) { c.Policy.Watch = true }, "policy.watch"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.postgres.dsn"},
		{"sqlite without path", func(c *Config) { c.Storage.SQLite.Path = "" }, "storage.sqlite.path"},
		{"unknown audit backend", func(c *Config) { c.Audit.Backend = "postgres" }, "audit.backend"},
		{"bad cron", func(c *Config) {
			c.Audit.Archive.Enabled = true
			c.Audit.Archive.Schedule = "every night"
		}, "audit.archive.schedule"},
		{"bad archive format", func(c *Config) { c.Audit.Archive.Format = "xml" }, "audit.archive.format"},
		{"bad nats url", func(c *Config) {
			c.Audit.NATS.Enabled = true
			c.Audit.NATS.URL = "localhost"
		}, "audit.nats.url"},
		{"wildcard subject", func(c *Config) {
			c.Audit.NATS.Enabled = true
			c.Audit.NATS.SubjectPrefix = "quorum.*"
		}, "audit.nats.subject_prefix"},
		{"bad level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"bad format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"empty pattern", func(c *Config) {
			c.Telemetry.Logging.RedactPatterns = []logging.Pattern{{Name: "x"}}
		}, "telemetry.logging.redact_patterns[0]"},
		{"relative metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var verr ValidationError
			if err := Validate(cfg); !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if len(verr.Errors) != 1 || verr.Errors[0].Field != tt.field {
				t.Errorf("errors = %v, want one on %s", verr.Errors, tt.field)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{"a", "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single error = %q", got)
	}

	two := ValidationError{Errors: []FieldError{{"a", "bad"}, {"b", "worse"}}}
	if got := two.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("multi error = %q", got)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)
	if cfg.Server != first.Server || cfg.Storage != first.Storage || cfg.Audit != first.Audit {
		t.Error("second ApplyDefaults changed the configuration")
	}
	if cfg.Storage.SQLite.Path != DefaultStorageSQLitePath || cfg.Audit.NATS.SubjectPrefix != DefaultNATSSubjectPrefix {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoggingConfig_LoggerConfig(t *testing.T) {
	lc := Default().Telemetry.Logging.LoggerConfig()
	if _, err := logging.New(lc); err != nil {
		t.Errorf("logging.New(default) failed: %v", err)
	}
}
