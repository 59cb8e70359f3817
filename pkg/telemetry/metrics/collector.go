package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Config configures a Collector.
type Config struct {
	// Enabled turns recording on. A disabled collector accepts every call
	// and records nothing.
	Enabled bool

	// Namespace prefixes every metric name.
	// Default: "quorum"
	Namespace string

	// ProcessMetrics also registers the Go runtime and process collectors.
	ProcessMetrics bool
}

// Collector owns the registry and every quorum metric. It implements
// workflow.Observer, so passing it to workflow.WithObserver is enough to
// instrument the engine.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	workflow *WorkflowMetrics
	http     *HTTPMetrics
	ops      *OpsMetrics
}

// NewCollector registers all metrics with registry. A nil registry creates
// a fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "quorum"
	}
	if cfg.ProcessMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}),
		)
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		workflow: NewWorkflowMetrics(cfg.Namespace, registry),
		http:     NewHTTPMetrics(cfg.Namespace, registry),
		ops:      NewOpsMetrics(cfg.Namespace, registry),
	}
}

// Registry returns the registry metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}
