package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/workflow"
)

// WorkflowMetrics tracks proposals through the engine.
//
// Metrics:
//   - quorum_proposals_submitted_total{category}
//   - quorum_pipeline_stage_duration_seconds{stage}
//   - quorum_step_decisions_total{role,decision}
//   - quorum_decision_rejections_total{reason}
//   - quorum_proposals_finished_total{status}
//   - quorum_procurement_orders_total
//   - quorum_procurement_order_amount
type WorkflowMetrics struct {
	submitted     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	decisions     *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	finished      *prometheus.CounterVec
	orders        prometheus.Counter
	orderAmount   prometheus.Histogram
}

// NewWorkflowMetrics creates and registers the workflow metrics.
func NewWorkflowMetrics(namespace string, registry prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_submitted_total",
			Help:      "Proposals accepted for review, by category.",
		}, []string{"category"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each rule pipeline stage.",
			// Stages are in-memory rule evaluations.
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8), // 10µs to 160ms
		}, []string{"stage"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_decisions_total",
			Help:      "Approval step decisions, by approver role and decision.",
		}, []string{"role", "decision"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_rejections_total",
			Help:      "Decisions refused by the engine, by reason.",
		}, []string{"reason"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_finished_total",
			Help:      "Proposals leaving review, by resulting status.",
		}, []string{"status"}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procurement_orders_total",
			Help:      "Purchase orders generated.",
		}),
		orderAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "procurement_order_amount",
			Help:      "Total amount of generated purchase orders.",
			Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000},
		}),
	}
	registry.MustRegister(m.submitted, m.stageDuration, m.decisions, m.rejections, m.finished, m.orders, m.orderAmount)
	return m
}

// RejectionReason maps an engine error to a bounded label value.
func RejectionReason(err error) string {
	var storeErr *workflow.StoreError
	switch {
	case errors.Is(err, workflow.ErrInvalidDecision):
		return "invalid_decision"
	case errors.Is(err, workflow.ErrNotFound):
		return "not_found"
	case errors.Is(err, workflow.ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, workflow.ErrOutOfOrder):
		return "out_of_order"
	case errors.As(err, &storeErr):
		return "store"
	default:
		return "other"
	}
}

// ProposalSubmitted implements workflow.Observer.
func (c *Collector) ProposalSubmitted(category policy.Category) {
	if !c.config.Enabled {
		return
	}
	c.workflow.submitted.WithLabelValues(string(category)).Inc()
}

// StageCompleted implements workflow.Observer.
func (c *Collector) StageCompleted(stage string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.workflow.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StepDecided implements workflow.Observer.
func (c *Collector) StepDecided(role policy.Role, decision workflow.Decision) {
	if !c.config.Enabled {
		return
	}
	c.workflow.decisions.WithLabelValues(string(role), string(decision)).Inc()
}

// DecisionRejected implements workflow.Observer.
func (c *Collector) DecisionRejected(reason error) {
	if !c.config.Enabled {
		return
	}
	c.workflow.rejections.WithLabelValues(RejectionReason(reason)).Inc()
}

// ProposalFinished implements workflow.Observer.
func (c *Collector) ProposalFinished(status proposal.Status) {
	if !c.config.Enabled {
		return
	}
	c.workflow.finished.WithLabelValues(string(status)).Inc()
}

// ProcurementGenerated implements workflow.Observer.
func (c *Collector) ProcurementGenerated(amount float64) {
	if !c.config.Enabled {
		return
	}
	c.workflow.orders.Inc()
	c.workflow.orderAmount.Observe(amount)
}

var _ workflow.Observer = (*Collector)(nil)
