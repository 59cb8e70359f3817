// Package metrics exposes quorum's Prometheus metrics.
//
// A Collector implements workflow.Observer and also records ops server
// requests, policy reloads and audit archive runs:
//
//	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
//	engine := workflow.NewEngine(store, rec, holder, workflow.WithObserver(collector))
//	mux.Handle("/metrics", collector.Handler())
package metrics
