// Package server runs the ops HTTP server next to the workflow engine.
//
// Routes:
//
//	GET /health   liveness, always 200 while the process serves
//	GET /ready    readiness, 503 when a store or the audit trail fails its ping
//	GET /version  build information
//	GET /metrics  Prometheus metrics, when WithMetrics is given
//
// Every request gets an X-Request-ID, reused when the caller sends one, which
// is attached to its log records. Completed requests are logged and counted
// by route pattern and status code. A panicking handler yields a 500.
package server
