// Package config loads quorum's configuration.
//
// Configuration comes from a YAML file, an optional .env file and QUORUM_*
// environment variables, in increasing order of precedence:
//
//	server:
//	  listen_address: "127.0.0.1:9090"
//	policy:
//	  file_path: "policies.yaml"
//	  watch: true
//	storage:
//	  backend: sqlite            # memory, sqlite or postgres
//	  sqlite:
//	    path: data/quorum.db
//	audit:
//	  backend: sqlite
//	  archive:
//	    enabled: true
//	    schedule: "0 3 * * *"
//	  nats:
//	    enabled: false
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//
// Environment overrides follow the YAML path: storage.postgres.dsn is
// QUORUM_STORAGE_POSTGRES_DSN.
//
// Validate reports every problem at once as a ValidationError. Initialize
// and GetConfig keep a process-wide copy for the CLI; Override applies flag
// values on top of it and validates the result.
package config
