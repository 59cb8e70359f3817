// Package telemetry groups quorum's observability packages:
//
//   - logging: slog setup with context fields and PII redaction
//   - metrics: Prometheus collectors for the workflow engine and ops jobs
//   - health: liveness and readiness probes
package telemetry
