package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/workflow"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector(Config{Enabled: true, Namespace: "test"}, prometheus.NewRegistry())
}

func TestCollector_Observer(t *testing.T) {
	c := newTestCollector(t)

	c.ProposalSubmitted(policy.CategoryWorkshop)
	c.ProposalSubmitted(policy.CategoryWorkshop)
	c.StageCompleted("analysis", 50*time.Microsecond)
	c.StepDecided(policy.RoleDepartment, workflow.DecisionApproved)
	c.ProposalFinished(proposal.StatusProcurement)
	c.ProcurementGenerated(12_500)

	if got := testutil.ToFloat64(c.workflow.submitted.WithLabelValues("workshop")); got != 2 {
		t.Errorf("submitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.workflow.decisions.WithLabelValues("department", "approved")); got != 1 {
		t.Errorf("decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.workflow.finished.WithLabelValues("procurement")); got != 1 {
		t.Errorf("finished = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.workflow.orders); got != 1 {
		t.Errorf("orders = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.workflow.stageDuration); n != 1 {
		t.Errorf("stage duration series = %d, want 1", n)
	}
}

func TestRejectionReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&workflow.DecisionError{StepID: "s", Err: workflow.ErrInvalidDecision}, "invalid_decision"},
		{&workflow.DecisionError{StepID: "s", Err: &workflow.NotFoundError{Kind: "step", ID: "s"}}, "not_found"},
		{&workflow.DecisionError{StepID: "s", Err: workflow.ErrAlreadyDecided}, "already_decided"},
		{fmt.Errorf("wrap: %w", workflow.ErrOutOfOrder), "out_of_order"},
		{workflow.NewStoreError("sqlite", "save", errors.New("disk full")), "store"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := RejectionReason(tt.err); got != tt.want {
			t.Errorf("RejectionReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCollector_DecisionRejected(t *testing.T) {
	c := newTestCollector(t)
	c.DecisionRejected(workflow.ErrAlreadyDecided)
	c.DecisionRejected(workflow.ErrAlreadyDecided)

	if got := testutil.ToFloat64(c.workflow.rejections.WithLabelValues("already_decided")); got != 2 {
		t.Errorf("rejections = %v, want 2", got)
	}
}

func TestCollector_Ops(t *testing.T) {
	c := newTestCollector(t)
	c.RecordPolicyReload(nil)
	c.RecordPolicyReload(errors.New("bad yaml"))
	c.RecordArchive(40, nil)
	c.RecordHTTPRequest(http.MethodGet, "/health", 200, time.Millisecond)

	if got := testutil.ToFloat64(c.ops.policyReloads.WithLabelValues("error")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ops.archiveEntries); got != 40 {
		t.Errorf("archived entries = %v, want 40", got)
	}
	if got := testutil.ToFloat64(c.http.requests.WithLabelValues("GET", "/health", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := NewCollector(Config{Namespace: "off"}, nil)
	c.ProposalSubmitted(policy.CategorySeminar)
	c.RecordArchive(3, nil)

	if got := testutil.ToFloat64(c.workflow.submitted.WithLabelValues("seminar")); got != 0 {
		t.Errorf("disabled collector recorded %v", got)
	}
	if c.Enabled() {
		t.Error("Enabled() = true for zero config")
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(Config{Enabled: true, ProcessMetrics: true}, nil)
	c.ProposalSubmitted(policy.CategoryConference)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`quorum_proposals_submitted_total{category="conference"} 1`, "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
