// Package health implements the liveness and readiness probes of the ops
// server. Readiness runs registered checks, typically PingCheck over the
// workflow store and the audit storage, each bounded by a timeout.
package health
