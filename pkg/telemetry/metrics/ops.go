package metrics

import "github.com/prometheus/client_golang/prometheus"

// OpsMetrics tracks background jobs.
//
// Metrics:
//   - quorum_policy_reloads_total{result}
//   - quorum_audit_archive_runs_total{result}
//   - quorum_audit_archived_entries_total
type OpsMetrics struct {
	policyReloads  *prometheus.CounterVec
	archiveRuns    *prometheus.CounterVec
	archiveEntries prometheus.Counter
}

// NewOpsMetrics creates and registers the background job metrics.
func NewOpsMetrics(namespace string, registry prometheus.Registerer) *OpsMetrics {
	m := &OpsMetrics{
		policyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_reloads_total",
			Help:      "Policy table reloads, by result.",
		}, []string{"result"}),
		archiveRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_archive_runs_total",
			Help:      "Audit archive runs, by result.",
		}, []string{"result"}),
		archiveEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_archived_entries_total",
			Help:      "Audit entries written to archives.",
		}),
	}
	registry.MustRegister(m.policyReloads, m.archiveRuns, m.archiveEntries)
	return m
}

// RecordPolicyReload counts a policy reload attempt.
func (c *Collector) RecordPolicyReload(err error) {
	if !c.config.Enabled {
		return
	}
	c.ops.policyReloads.WithLabelValues(result(err)).Inc()
}

// RecordArchive counts an archive run and the entries it wrote.
func (c *Collector) RecordArchive(entries int, err error) {
	if !c.config.Enabled {
		return
	}
	c.ops.archiveRuns.WithLabelValues(result(err)).Inc()
	c.ops.archiveEntries.Add(float64(entries))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
