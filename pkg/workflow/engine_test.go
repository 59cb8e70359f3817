package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"mercator-hq/quorum/pkg/audit"
	auditstorage "mercator-hq/quorum/pkg/audit/storage"
	"mercator-hq/quorum/pkg/audit/recorder"
	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
	"mercator-hq/quorum/pkg/workflow"
	"mercator-hq/quorum/pkg/workflow/storage"
)

var now = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

type countingObserver struct {
	mu          sync.Mutex
	submitted   int
	stages      map[string]int
	decided     map[workflow.Decision]int
	rejected    []error
	finished    map[proposal.Status]int
	procurement float64
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		stages:   make(map[string]int),
		decided:  make(map[workflow.Decision]int),
		finished: make(map[proposal.Status]int),
	}
}

func (o *countingObserver) ProposalSubmitted(policy.Category) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted++
}

func (o *countingObserver) StageCompleted(stage string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages[stage]++
}

func (o *countingObserver) StepDecided(_ policy.Role, d workflow.Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decided[d]++
}

func (o *countingObserver) DecisionRejected(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, err)
}

func (o *countingObserver) ProposalFinished(s proposal.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[s]++
}

func (o *countingObserver) ProcurementGenerated(amount float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.procurement += amount
}

type harness struct {
	engine   *workflow.Engine
	store    *storage.MemoryStore
	recorder *recorder.Recorder
	observer *countingObserver
}

func newHarness(t *testing.T, table *policy.Table) *harness {
	t.Helper()
	if table == nil {
		table = policy.Default()
	}

	var (
		mu    sync.Mutex
		clock = now
	)
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}

	store := storage.NewMemoryStore()
	rec := recorder.NewRecorder(auditstorage.NewMemoryStorage(), nil, recorder.WithClock(tick))
	obs := newCountingObserver()
	eng := workflow.NewEngine(store, rec, workflow.StaticPolicy{Table: table},
		workflow.WithClock(tick),
		workflow.WithObserver(obs),
		workflow.WithPlanner(procurement.NewPlanner(nil,
			procurement.WithClock(tick),
			procurement.WithReferenceSource(func() int { return 42 }),
		)),
	)
	t.Cleanup(func() { rec.Close() })

	return &harness{engine: eng, store: store, recorder: rec, observer: obs}
}

func workshopDraft(budget float64) *proposal.Draft {
	date := now.AddDate(0, 1, 0)
	return &proposal.Draft{
		Title:       "Concurrency in Go",
		Description: "A two day hands-on workshop on goroutines, channels and the memory model for final year students.",
		Category:    policy.CategoryWorkshop,
		Budget:      budget,
		Date:        &date,
		Venue:       "Seminar Hall 2",
		Attendees:   60,
		Department:  "cs",
	}
}

func activeStep(t *testing.T, h *harness, proposalID string) *workflow.Step {
	t.Helper()
	s, err := h.engine.ActiveStep(context.Background(), proposalID)
	if err != nil {
		t.Fatalf("ActiveStep() failed: %v", err)
	}
	if s == nil {
		t.Fatal("ActiveStep() = nil, want a pending step")
	}
	return s
}

func roles(steps []*workflow.Step) []policy.Role {
	out := make([]policy.Role, len(steps))
	for i, s := range steps {
		out[i] = s.Role
	}
	return out
}

func equalRoles(a, b []policy.Role) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func actions(entries []*audit.Entry) []audit.Action {
	out := make([]audit.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestEngine_SubmitWithinThresholds(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if p.Status != proposal.StatusInReview {
		t.Errorf("Status = %s, want in_review", p.Status)
	}
	if p.SubmittedBy != "faculty-7" {
		t.Errorf("SubmittedBy = %q, want actor", p.SubmittedBy)
	}
	if !p.Compliance.Passed {
		t.Errorf("compliance failed: %v", p.Compliance.Issues)
	}
	want := []policy.Role{policy.RoleDepartment}
	if !equalRoles(p.Analysis.RoutingPath, want) {
		t.Errorf("RoutingPath = %v, want %v", p.Analysis.RoutingPath, want)
	}

	steps, err := h.engine.Steps(ctx, p.ID, 0)
	if err != nil {
		t.Fatalf("Steps() failed: %v", err)
	}
	if len(steps) != 1 || steps[0].Order != 1 || steps[0].Generation != 1 {
		t.Fatalf("steps = %+v", steps)
	}
	if steps[0].Approver != "hod" {
		t.Errorf("Approver = %q, want hod", steps[0].Approver)
	}

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	if h.observer.submitted != 1 || h.observer.stages["routing"] != 1 {
		t.Errorf("observer: submitted=%d stages=%v", h.observer.submitted, h.observer.stages)
	}
}

func TestEngine_SubmitOverCeilingAddsOverride(t *testing.T) {
	h := newHarness(t, nil)

	p, err := h.engine.Submit(context.Background(), workshopDraft(120_000), "faculty-7")
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if p.Compliance.Passed || len(p.Compliance.Issues) == 0 {
		t.Fatalf("compliance = %+v, want issues", p.Compliance)
	}
	path := p.Analysis.RoutingPath
	if path[len(path)-1] != policy.RoleAdminOverride {
		t.Errorf("RoutingPath = %v, want admin_override last", path)
	}
}

func TestEngine_ApproveGeneratesProcurement(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	step := activeStep(t, h, p.ID)

	decided, err := h.engine.Decide(ctx, step.ID, workflow.DecisionApproved, "looks good", "hod")
	if err != nil {
		t.Fatalf("Decide() failed: %v", err)
	}
	if decided.Status != workflow.StepApproved || decided.DecidedBy != "hod" || decided.DecidedAt == nil {
		t.Errorf("decided step = %+v", decided)
	}

	got, _ := h.engine.GetProposal(ctx, p.ID)
	if got.Status != proposal.StatusProcurement {
		t.Fatalf("Status = %s, want procurement", got.Status)
	}

	order, err := h.engine.Procurement(ctx, p.ID)
	if err != nil {
		t.Fatalf("Procurement() failed: %v", err)
	}
	if order.TotalAmount <= 0 || order.TotalAmount > p.Budget {
		t.Errorf("TotalAmount = %v, want within (0, %v]", order.TotalAmount, p.Budget)
	}
	if order.ERPReference != "PO/2026/00042" {
		t.Errorf("ERPReference = %q", order.ERPReference)
	}

	completed, err := h.engine.Complete(ctx, p.ID, "admin")
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if completed.Status != proposal.StatusCompleted {
		t.Errorf("Status = %s, want completed", completed.Status)
	}

	trail, err := h.engine.AuditTrail(ctx, p.ID)
	if err != nil {
		t.Fatalf("AuditTrail() failed: %v", err)
	}
	want := []audit.Action{
		audit.ActionProposalSubmitted,
		audit.ActionAnalysisCompleted,
		audit.ActionComplianceChecked,
		audit.ActionRoutingComputed,
		audit.ActionWorkflowStarted,
		audit.ActionStepDecided,
		audit.ActionProposalApproved,
		audit.ActionProcurementGenerated,
		audit.ActionProposalCompleted,
	}
	gotActions := actions(trail)
	if len(gotActions) != len(want) {
		t.Fatalf("trail = %v, want %v", gotActions, want)
	}
	for i := range want {
		if gotActions[i] != want[i] {
			t.Errorf("trail[%d] = %s, want %s", i, gotActions[i], want[i])
		}
	}
	for i, e := range trail {
		if !audit.Verify(e) {
			t.Errorf("entry %d (%s) fails hash verification", i, e.Action)
		}
		if i > 0 && (e.Timestamp.Before(trail[i-1].Timestamp) || e.Sequence <= trail[i-1].Sequence) {
			t.Errorf("entry %d out of canonical order", i)
		}
	}

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	if h.observer.procurement != order.TotalAmount {
		t.Errorf("observer procurement = %v, want %v", h.observer.procurement, order.TotalAmount)
	}
	if h.observer.finished[proposal.StatusCompleted] != 1 {
		t.Errorf("finished = %v", h.observer.finished)
	}
}

func TestEngine_ApproveWithoutPurchasing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	draft := workshopDraft(10_000)
	draft.Category = policy.CategoryGuestLecture
	p, err := h.engine.Submit(ctx, draft, "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Decide(ctx, activeStep(t, h, p.ID).ID, workflow.DecisionApproved, "", "hod"); err != nil {
		t.Fatal(err)
	}

	got, _ := h.engine.GetProposal(ctx, p.ID)
	if got.Status != proposal.StatusApproved {
		t.Errorf("Status = %s, want approved", got.Status)
	}
	if _, err := h.engine.Procurement(ctx, p.ID); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("Procurement() err = %v, want ErrNotFound", err)
	}
}

func TestEngine_RejectThenDecideLaterStep(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(80_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	steps, _ := h.engine.Steps(ctx, p.ID, 1)
	want := []policy.Role{policy.RoleDepartment, policy.RoleSeniorLeadership, policy.RoleFinance}
	if !equalRoles(roles(steps), want) {
		t.Fatalf("roles = %v, want %v", roles(steps), want)
	}

	if _, err := h.engine.Decide(ctx, steps[0].ID, workflow.DecisionRejected, "out of scope", "hod"); err != nil {
		t.Fatalf("Decide(step 1) failed: %v", err)
	}
	got, _ := h.engine.GetProposal(ctx, p.ID)
	if got.Status != proposal.StatusRejected {
		t.Fatalf("Status = %s, want rejected", got.Status)
	}

	_, err = h.engine.Decide(ctx, steps[1].ID, workflow.DecisionApproved, "", "principal")
	if !errors.Is(err, workflow.ErrOutOfOrder) {
		t.Fatalf("Decide(step 2) = %v, want ErrOutOfOrder", err)
	}
	var de *workflow.DecisionError
	if !errors.As(err, &de) || de.ProposalID != p.ID {
		t.Errorf("error = %#v, want *DecisionError for %s", err, p.ID)
	}

	after, _ := h.engine.Steps(ctx, p.ID, 1)
	if after[1].Status != workflow.StepPending || after[2].Status != workflow.StepPending {
		t.Error("steps after the rejection should stay pending")
	}
	if active, _ := h.engine.ActiveStep(ctx, p.ID); active != nil {
		t.Errorf("ActiveStep() = %+v, want nil", active)
	}
}

func TestEngine_DecideErrors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(80_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	steps, _ := h.engine.Steps(ctx, p.ID, 1)

	if _, err := h.engine.Decide(ctx, "missing", workflow.DecisionApproved, "", "x"); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("unknown step: err = %v, want ErrNotFound", err)
	}
	if _, err := h.engine.Decide(ctx, steps[0].ID, "maybe", "", "x"); !errors.Is(err, workflow.ErrInvalidDecision) {
		t.Errorf("bad decision: err = %v, want ErrInvalidDecision", err)
	}
	if _, err := h.engine.Decide(ctx, steps[2].ID, workflow.DecisionApproved, "", "bursar"); !errors.Is(err, workflow.ErrOutOfOrder) {
		t.Errorf("later step: err = %v, want ErrOutOfOrder", err)
	}
	if _, err := h.engine.Decide(ctx, steps[0].ID, workflow.DecisionApproved, "", "hod"); err != nil {
		t.Fatalf("Decide(step 1) failed: %v", err)
	}
	if _, err := h.engine.Decide(ctx, steps[0].ID, workflow.DecisionApproved, "", "hod"); !errors.Is(err, workflow.ErrAlreadyDecided) {
		t.Errorf("repeat decision: err = %v, want ErrAlreadyDecided", err)
	}

	got, _ := h.engine.GetProposal(ctx, p.ID)
	if got.Status != proposal.StatusInReview {
		t.Errorf("Status = %s, want in_review", got.Status)
	}
	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	if len(h.observer.rejected) != 4 {
		t.Errorf("rejected decisions observed = %d, want 4", len(h.observer.rejected))
	}
}

func TestEngine_ConcurrentDecisionsOnSameStep(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(80_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	step := activeStep(t, h, p.ID)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.engine.Decide(ctx, step.ID, workflow.DecisionApproved, "", "hod")
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, workflow.ErrAlreadyDecided):
			already++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || already != n-1 {
		t.Errorf("ok=%d already=%d, want 1 and %d", ok, already, n-1)
	}

	trail, _ := h.engine.AuditTrail(ctx, p.ID)
	decided := 0
	for _, e := range trail {
		if e.Action == audit.ActionStepDecided {
			decided++
		}
	}
	if decided != 1 {
		t.Errorf("step_decided entries = %d, want 1", decided)
	}
}

func TestEngine_ClarificationAndResubmit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(80_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	first := activeStep(t, h, p.ID)
	if _, err := h.engine.Decide(ctx, first.ID, workflow.DecisionClarificationRequested, "trim the budget", "hod"); err != nil {
		t.Fatalf("Decide() failed: %v", err)
	}
	got, _ := h.engine.GetProposal(ctx, p.ID)
	if got.Status != proposal.StatusRevisionRequested {
		t.Fatalf("Status = %s, want revision_requested", got.Status)
	}

	budget := 30_000.0
	revised, err := h.engine.Resubmit(ctx, p.ID, &proposal.Revision{Budget: &budget}, "faculty-7")
	if err != nil {
		t.Fatalf("Resubmit() failed: %v", err)
	}
	if revised.Status != proposal.StatusInReview || revised.Revision != 1 || revised.Budget != budget {
		t.Errorf("revised = status %s revision %d budget %v", revised.Status, revised.Revision, revised.Budget)
	}

	gen2, _ := h.engine.Steps(ctx, p.ID, 2)
	if len(gen2) != 1 || gen2[0].Order != 1 || gen2[0].Role != policy.RoleDepartment {
		t.Fatalf("generation 2 steps = %+v", gen2)
	}
	all, _ := h.engine.Steps(ctx, p.ID, 0)
	if len(all) != 4 {
		t.Errorf("all steps = %d, want 3 from generation 1 and 1 from generation 2", len(all))
	}

	// The old chain's steps no longer accept decisions.
	old, _ := h.engine.Steps(ctx, p.ID, 1)
	if _, err := h.engine.Decide(ctx, old[1].ID, workflow.DecisionApproved, "", "principal"); !errors.Is(err, workflow.ErrOutOfOrder) {
		t.Errorf("Decide(old step) = %v, want ErrOutOfOrder", err)
	}

	trail, _ := h.engine.AuditTrail(ctx, p.ID)
	var started, clarified int
	for _, e := range trail {
		switch e.Action {
		case audit.ActionWorkflowStarted:
			started++
		case audit.ActionRevisionRequested:
			clarified++
		}
	}
	if started != 2 || clarified != 1 {
		t.Errorf("workflow_started=%d revision_requested=%d, want 2 and 1", started, clarified)
	}
}

func TestEngine_ResubmitRequiresRevisionRequested(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.engine.Resubmit(ctx, p.ID, nil, "faculty-7")
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("Resubmit() = %v, want ErrInvalidTransition", err)
	}
	if _, err := h.engine.Complete(ctx, p.ID, "admin"); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("Complete() on in_review = %v, want ErrInvalidTransition", err)
	}
}

func TestEngine_SubmitRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	bad := workshopDraft(-5)
	bad.Title = ""
	_, err := h.engine.Submit(ctx, bad, "faculty-7")
	var ve *proposal.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Submit() = %v, want *ValidationError", err)
	}

	unknown := workshopDraft(1_000)
	unknown.Category = "yoga_retreat"
	_, err = h.engine.Submit(ctx, unknown, "faculty-7")
	var ce *policy.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Submit() = %v, want *ConfigError", err)
	}

	list, _ := h.engine.ListProposals(ctx, workflow.ProposalFilter{})
	if len(list) != 0 {
		t.Errorf("stored %d proposals, want 0", len(list))
	}
	all, _ := h.engine.AuditTrail(ctx, "")
	if len(all) != 0 {
		t.Errorf("recorded %d audit entries, want 0", len(all))
	}
}

func TestEngine_DepartmentQuotaUsesHistory(t *testing.T) {
	table := policy.Default()
	table.MaxEventsPerDepartment = 1
	h := newHarness(t, table)
	ctx := context.Background()

	if _, err := h.engine.Submit(ctx, workshopDraft(10_000), "faculty-7"); err != nil {
		t.Fatal(err)
	}
	second, err := h.engine.Submit(ctx, workshopDraft(10_000), "faculty-8")
	if err != nil {
		t.Fatal(err)
	}
	if second.Compliance.Passed {
		t.Fatal("second proposal passed compliance, want department quota issue")
	}
	path := second.Analysis.RoutingPath
	if path[len(path)-1] != policy.RoleAdminOverride {
		t.Errorf("RoutingPath = %v, want admin_override last", path)
	}
}

func TestEngine_VendorRecommendations(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	vendors := []vendor.Vendor{
		{ID: "v-a", Name: "A", Category: vendor.CategoryCatering, Rating: 4.5, Reliability: 0.9, PriceIndex: 0.9, PastOrders: 50, Active: true},
		{ID: "v-b", Name: "B", Category: vendor.CategoryCatering, Rating: 4.0, Reliability: 0.95, PriceIndex: 1.1, PastOrders: 10, Active: true},
	}
	if err := h.engine.ImportVendors(ctx, vendors, "admin"); err != nil {
		t.Fatalf("ImportVendors() failed: %v", err)
	}

	ranking, err := h.engine.RecommendVendors(ctx, vendor.CategoryCatering)
	if err != nil {
		t.Fatalf("RecommendVendors() failed: %v", err)
	}
	if top := ranking.Top(); top == nil || top.Vendor.ID != "v-a" {
		t.Errorf("Top() = %+v, want v-a", top)
	}

	empty, err := h.engine.RecommendVendors(ctx, vendor.CategoryVenue)
	if err != nil {
		t.Fatalf("RecommendVendors(empty) failed: %v", err)
	}
	if !empty.Empty() || empty.Reason == "" {
		t.Errorf("empty ranking = %+v", empty)
	}

	p, err := h.engine.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.Decide(ctx, activeStep(t, h, p.ID).ID, workflow.DecisionApproved, "", "hod"); err != nil {
		t.Fatal(err)
	}
	rankings, err := h.engine.RecommendForProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("RecommendForProposal() failed: %v", err)
	}
	order, _ := h.engine.Procurement(ctx, p.ID)
	if len(rankings) != len(order.VendorCategories) {
		t.Errorf("got %d rankings for %d categories", len(rankings), len(order.VendorCategories))
	}

	all, _ := h.recorder.Storage().Query(ctx, &audit.Query{Actions: []audit.Action{audit.ActionVendorImported}})
	if len(all) != 1 {
		t.Errorf("vendor_imported entries = %d, want 1", len(all))
	}
}

func TestEngine_RecordPolicyReload(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.RecordPolicyReload(ctx, "policy.yaml", errors.New("bad yaml")); err != nil {
		t.Fatalf("RecordPolicyReload() failed: %v", err)
	}
	entries, _ := h.recorder.Storage().Query(ctx, &audit.Query{Actions: []audit.Action{audit.ActionPolicyReloaded}})
	if len(entries) != 1 || entries[0].Details["ok"] != false {
		t.Errorf("policy_reloaded entries = %+v", entries)
	}
}

// hookStore runs beforeDecide ahead of every DecideStep.
type hookStore struct {
	workflow.Store
	beforeDecide func()
}

func (s *hookStore) DecideStep(ctx context.Context, p *proposal.Proposal, step *workflow.Step) error {
	if s.beforeDecide != nil {
		s.beforeDecide()
	}
	return s.Store.DecideStep(ctx, p, step)
}

// failingSaveStore fails SaveProposal while fail is set.
type failingSaveStore struct {
	workflow.Store
	fail bool
}

func (s *failingSaveStore) SaveProposal(ctx context.Context, p *proposal.Proposal, steps ...*workflow.Step) error {
	if s.fail {
		return workflow.NewStoreError("test", "save_proposal", errors.New("disk full"))
	}
	return s.Store.SaveProposal(ctx, p, steps...)
}

func newEngine(t *testing.T, store workflow.Store) (*workflow.Engine, *recorder.Recorder) {
	t.Helper()
	var (
		mu    sync.Mutex
		clock = now
	)
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}
	rec := recorder.NewRecorder(auditstorage.NewMemoryStorage(), nil, recorder.WithClock(tick))
	t.Cleanup(func() { rec.Close() })
	return workflow.NewEngine(store, rec, workflow.StaticPolicy{Table: policy.Default()}, workflow.WithClock(tick)), rec
}

func openSQLite(t *testing.T, path string) *storage.SQLiteStore {
	t.Helper()
	cfg := storage.DefaultSQLiteConfig()
	cfg.Path = path
	cfg.CheckpointInterval = 0
	s, err := storage.NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEngine_DecideAcrossProcessesSharingSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quorum.db")
	ctx := context.Background()

	engineB, _ := newEngine(t, openSQLite(t, path))
	storeA := &hookStore{Store: openSQLite(t, path)}
	engineA, recA := newEngine(t, storeA)

	p, err := engineA.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	step, err := engineA.ActiveStep(ctx, p.ID)
	if err != nil || step == nil {
		t.Fatalf("ActiveStep() = %v, %v", step, err)
	}

	// B approves after A has loaded the chain but before A writes.
	storeA.beforeDecide = func() {
		storeA.beforeDecide = nil
		if _, err := engineB.Decide(ctx, step.ID, workflow.DecisionApproved, "", "hod-b"); err != nil {
			t.Errorf("engine B Decide() failed: %v", err)
		}
	}
	_, err = engineA.Decide(ctx, step.ID, workflow.DecisionRejected, "", "hod-a")
	if !errors.Is(err, workflow.ErrAlreadyDecided) {
		t.Fatalf("engine A Decide() = %v, want ErrAlreadyDecided", err)
	}
	var de *workflow.DecisionError
	if !errors.As(err, &de) || de.ProposalID != p.ID {
		t.Errorf("error = %#v, want *DecisionError for %s", err, p.ID)
	}

	got, err := engineA.Steps(ctx, p.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Status != workflow.StepApproved || got[0].DecidedBy != "hod-b" {
		t.Errorf("step = %s by %s, want approved by hod-b", got[0].Status, got[0].DecidedBy)
	}
	stored, _ := engineA.GetProposal(ctx, p.ID)
	if stored.Status != proposal.StatusProcurement {
		t.Errorf("proposal status = %s, want procurement", stored.Status)
	}

	trail, _ := recA.Trail(ctx, p.ID)
	for _, e := range trail {
		if e.Action == audit.ActionStepDecided {
			t.Errorf("engine A recorded a decision it did not store: %+v", e)
		}
	}
}

func TestEngine_AuditTrailOnlyGrows(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var snapshots [][]*audit.Entry
	snapshot := func(proposalID string) {
		t.Helper()
		trail, err := h.engine.AuditTrail(ctx, proposalID)
		if err != nil {
			t.Fatalf("AuditTrail() failed: %v", err)
		}
		snapshots = append(snapshots, trail)
	}

	p, err := h.engine.Submit(ctx, workshopDraft(80_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	snapshot(p.ID)

	if _, err := h.engine.Decide(ctx, activeStep(t, h, p.ID).ID, workflow.DecisionApproved, "ok", "hod"); err != nil {
		t.Fatal(err)
	}
	snapshot(p.ID)
	if _, err := h.engine.Decide(ctx, activeStep(t, h, p.ID).ID, workflow.DecisionClarificationRequested, "trim the budget", "dean"); err != nil {
		t.Fatal(err)
	}
	snapshot(p.ID)

	budget := 30_000.0
	if _, err := h.engine.Resubmit(ctx, p.ID, &proposal.Revision{Budget: &budget}, "faculty-7"); err != nil {
		t.Fatal(err)
	}
	snapshot(p.ID)
	if _, err := h.engine.Decide(ctx, activeStep(t, h, p.ID).ID, workflow.DecisionApproved, "", "hod"); err != nil {
		t.Fatal(err)
	}
	snapshot(p.ID)

	for i := 1; i < len(snapshots); i++ {
		prev, next := snapshots[i-1], snapshots[i]
		if len(next) <= len(prev) {
			t.Fatalf("snapshot %d has %d entries, want more than %d", i, len(next), len(prev))
		}
		for j, e := range prev {
			n := next[j]
			if n.ID != e.ID || n.ContentHash != e.ContentHash || n.Sequence != e.Sequence || !reflect.DeepEqual(n.Details, e.Details) {
				t.Errorf("snapshot %d entry %d changed: %+v -> %+v", i, j, e, n)
			}
		}
	}
	for _, e := range snapshots[len(snapshots)-1] {
		if !audit.Verify(e) {
			t.Errorf("entry %s (%s) fails hash verification", e.ID, e.Action)
		}
	}
}

func TestEngine_FailedSaveLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	store := &failingSaveStore{Store: storage.NewMemoryStore(), fail: true}
	engine, rec := newEngine(t, store)

	_, err := engine.Submit(ctx, workshopDraft(80_000), "faculty-7")
	var se *workflow.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("Submit() = %v, want *StoreError", err)
	}
	list, _ := engine.ListProposals(ctx, workflow.ProposalFilter{})
	if len(list) != 0 {
		t.Errorf("stored %d proposals after a failed submit", len(list))
	}
	if all, _ := rec.Trail(ctx, ""); len(all) != 0 {
		t.Errorf("recorded %d audit entries after a failed submit", len(all))
	}

	store.fail = false
	p, err := engine.Submit(ctx, workshopDraft(80_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	step, _ := engine.ActiveStep(ctx, p.ID)
	if _, err := engine.Decide(ctx, step.ID, workflow.DecisionClarificationRequested, "trim", "hod"); err != nil {
		t.Fatal(err)
	}
	before, _ := rec.Trail(ctx, p.ID)

	store.fail = true
	budget := 30_000.0
	if _, err := engine.Resubmit(ctx, p.ID, &proposal.Revision{Budget: &budget}, "faculty-7"); err == nil {
		t.Fatal("Resubmit() = nil error with a failing store")
	}

	got, _ := engine.GetProposal(ctx, p.ID)
	if got.Status != proposal.StatusRevisionRequested || got.Revision != 0 || got.Budget != 80_000 {
		t.Errorf("proposal = status %s revision %d budget %v, want it unchanged", got.Status, got.Revision, got.Budget)
	}
	if gen2, _ := engine.Steps(ctx, p.ID, 2); len(gen2) != 0 {
		t.Errorf("generation 2 has %d steps after a failed resubmit", len(gen2))
	}
	if after, _ := rec.Trail(ctx, p.ID); len(after) != len(before) {
		t.Errorf("audit trail grew from %d to %d entries after a failed resubmit", len(before), len(after))
	}
}

func TestEngine_SubmitRecordsStatusPerStage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p, err := h.engine.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	trail, _ := h.engine.AuditTrail(ctx, p.ID)
	want := map[audit.Action]string{
		audit.ActionProposalSubmitted: "submitted",
		audit.ActionAnalysisCompleted: "submitted",
		audit.ActionComplianceChecked: "submitted",
		audit.ActionRoutingComputed:   "submitted",
		audit.ActionWorkflowStarted:   "in_review",
	}
	if len(trail) != len(want) {
		t.Fatalf("trail = %v", actions(trail))
	}
	for _, e := range trail {
		if got := e.Details["status"]; got != want[e.Action] {
			t.Errorf("%s status = %v, want %s", e.Action, got, want[e.Action])
		}
	}
}

func TestEngine_PendingSteps(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	small, err := h.engine.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}
	large, err := h.engine.Submit(ctx, workshopDraft(80_000), "faculty-8")
	if err != nil {
		t.Fatal(err)
	}

	inbox, err := h.engine.PendingSteps(ctx, policy.RoleDepartment)
	if err != nil {
		t.Fatalf("PendingSteps() failed: %v", err)
	}
	if len(inbox) != 2 || inbox[0].Proposal.ID != small.ID || inbox[1].Proposal.ID != large.ID {
		t.Fatalf("department inbox = %+v, want both proposals oldest first", inbox)
	}
	if inbox[0].Step.Role != policy.RoleDepartment || inbox[0].Step.Status != workflow.StepPending {
		t.Errorf("inbox step = %+v", inbox[0].Step)
	}

	if _, err := h.engine.Decide(ctx, inbox[1].Step.ID, workflow.DecisionApproved, "", "hod"); err != nil {
		t.Fatal(err)
	}
	next := activeStep(t, h, large.ID)

	dept, _ := h.engine.PendingSteps(ctx, policy.RoleDepartment)
	if len(dept) != 1 || dept[0].Proposal.ID != small.ID {
		t.Errorf("department inbox after approval = %+v", dept)
	}
	theirs, _ := h.engine.PendingSteps(ctx, next.Role)
	if len(theirs) != 1 || theirs[0].Step.ID != next.ID {
		t.Errorf("%s inbox = %+v, want step %s", next.Role, theirs, next.ID)
	}
	all, _ := h.engine.PendingSteps(ctx, "")
	if len(all) != 2 {
		t.Errorf("unfiltered inbox has %d steps, want 2", len(all))
	}

	if _, err := h.engine.Decide(ctx, dept[0].Step.ID, workflow.DecisionRejected, "", "hod"); err != nil {
		t.Fatal(err)
	}
	if dept, _ := h.engine.PendingSteps(ctx, policy.RoleDepartment); len(dept) != 0 {
		t.Errorf("rejected proposal still pending: %+v", dept)
	}
}

func TestEngine_Quotations(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	vendors := []vendor.Vendor{
		{ID: "v-a", Name: "A", Category: vendor.CategoryCatering, Rating: 4.5, Reliability: 0.9, PriceIndex: 0.9, PastOrders: 50, Active: true},
		{ID: "v-b", Name: "B", Category: vendor.CategoryCatering, Rating: 4.0, Reliability: 0.95, PriceIndex: 1.1, PastOrders: 10, Active: true},
	}
	if err := h.engine.ImportVendors(ctx, vendors, "admin"); err != nil {
		t.Fatal(err)
	}
	p, err := h.engine.Submit(ctx, workshopDraft(40_000), "faculty-7")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.engine.SubmitQuotation(ctx, p.ID, "v-a", 1000, "", "purchase"); !errors.Is(err, workflow.ErrNotInProcurement) {
		t.Errorf("SubmitQuotation() in review = %v, want ErrNotInProcurement", err)
	}
	if _, err := h.engine.Decide(ctx, activeStep(t, h, p.ID).ID, workflow.DecisionApproved, "", "hod"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		vendorID string
		amount   float64
		want     error
	}{
		{"zero amount", "v-a", 0, workflow.ErrInvalidQuotation},
		{"negative amount", "v-a", -10, workflow.ErrInvalidQuotation},
		{"unknown vendor", "v-x", 1000, workflow.ErrNotFound},
	}
	for _, tt := range tests {
		if _, err := h.engine.SubmitQuotation(ctx, p.ID, tt.vendorID, tt.amount, "", "purchase"); !errors.Is(err, tt.want) {
			t.Errorf("%s: SubmitQuotation() = %v, want %v", tt.name, err, tt.want)
		}
	}

	if _, err := h.engine.SubmitQuotation(ctx, p.ID, "v-b", 30_000, "", "purchase"); err != nil {
		t.Fatalf("SubmitQuotation(v-b) failed: %v", err)
	}
	ranked, err := h.engine.SubmitQuotation(ctx, p.ID, "v-a", 20_000, "incl. tea", "purchase")
	if err != nil {
		t.Fatalf("SubmitQuotation(v-a) failed: %v", err)
	}
	if len(ranked) != 2 || ranked[0].Quotation.Vendor.ID != "v-a" || ranked[0].Rank != 1 {
		t.Fatalf("ranked = %+v, want v-a first", ranked)
	}
	if ranked[1].Quotation.Vendor.Name != "B" {
		t.Errorf("vendor not filled from catalog: %+v", ranked[1].Quotation.Vendor)
	}

	listed, err := h.engine.Quotations(ctx, p.ID)
	if err != nil {
		t.Fatalf("Quotations() failed: %v", err)
	}
	if !reflect.DeepEqual(listed, ranked) {
		t.Errorf("Quotations() = %+v, want %+v", listed, ranked)
	}
	if _, err := h.engine.Quotations(ctx, "missing"); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("Quotations(missing) = %v, want ErrNotFound", err)
	}

	entries, _ := h.recorder.Storage().Query(ctx, &audit.Query{Actions: []audit.Action{audit.ActionQuotationSubmitted}})
	if len(entries) != 2 {
		t.Fatalf("quotation_submitted entries = %d, want 2", len(entries))
	}
	if best := entries[1].Details["best_quotation_id"]; best != ranked[0].Quotation.ID {
		t.Errorf("best_quotation_id = %v, want %s", best, ranked[0].Quotation.ID)
	}
}
