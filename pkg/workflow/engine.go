package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"mercator-hq/quorum/pkg/audit"
	"mercator-hq/quorum/pkg/pipeline"
	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
)

// Recorder appends audit entries. *recorder.Recorder satisfies it.
type Recorder interface {
	Record(ctx context.Context, e *audit.Entry) (*audit.Entry, error)
	Trail(ctx context.Context, proposalID string) ([]*audit.Entry, error)
	Storage() audit.Storage
}

// Option configures an Engine.
type Option func(*Engine)

// WithDirectory sets the approver directory. Defaults to a PolicyDirectory
// over the engine's policy source.
func WithDirectory(d Directory) Option {
	return func(e *Engine) { e.directory = d }
}

// WithScorer replaces the default vendor scorer.
func WithScorer(s *vendor.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithPlanner replaces the default procurement planner.
func WithPlanner(p *procurement.Planner) Option {
	return func(e *Engine) { e.planner = p }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine drives proposals through analysis, routing and the approval chain.
// Events for one proposal are serialized by a per-proposal lock; events for
// different proposals run in parallel.
type Engine struct {
	store     Store
	recorder  Recorder
	policies  PolicySource
	directory Directory
	scorer    *vendor.Scorer
	planner   *procurement.Planner
	observer  Observer
	now       func() time.Time
	logger    *slog.Logger
	locks     *lockSet
}

// NewEngine creates an engine.
func NewEngine(store Store, rec Recorder, policies PolicySource, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		recorder: rec,
		policies: policies,
		scorer:   vendor.NewScorer(),
		planner:  procurement.NewPlanner(nil),
		observer: nopObserver{},
		now:      time.Now,
		logger:   slog.Default().With("component", "workflow.engine"),
		locks:    newLockSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.directory == nil {
		e.directory = PolicyDirectory{Policies: policies}
	}
	return e
}

// Submit validates draft, runs the pipeline and stores the proposal in
// in_review together with its first step chain. Structural problems return
// *proposal.ValidationError and a category missing from the policy returns
// *policy.ConfigError. Nothing is stored unless every stage succeeds.
func (e *Engine) Submit(ctx context.Context, draft *proposal.Draft, actor string) (*proposal.Proposal, error) {
	now := e.now().UTC()
	p := proposal.FromDraft(uuid.New().String(), draft, now)
	if p.SubmittedBy == "" {
		p.SubmittedBy = actor
	}
	if err := proposal.Validate(p); err != nil {
		return nil, err
	}

	table := e.policies.Current()
	if _, err := table.Category(p.Category); err != nil {
		return nil, err
	}
	if err := p.Transition(proposal.StatusSubmitted); err != nil {
		return nil, err
	}

	rt, err := e.route(ctx, table, p)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveProposal(ctx, p, rt.steps...); err != nil {
		return nil, err
	}

	if err := e.recordStatus(ctx, audit.ActionProposalSubmitted, p, proposal.StatusSubmitted, actor, map[string]any{
		"title":      p.Title,
		"category":   string(p.Category),
		"budget":     p.Budget,
		"department": p.Department,
	}); err != nil {
		return nil, err
	}
	e.observer.ProposalSubmitted(p.Category)
	if err := e.recordRoute(ctx, p, rt, actor); err != nil {
		return nil, err
	}

	e.logger.Info("proposal submitted",
		"proposal_id", p.ID,
		"category", p.Category,
		"budget", p.Budget,
		"routing_path", p.Analysis.RoutingPath,
	)
	return p.Clone(), nil
}

// Decide applies a decision to the active step of its proposal.
//
// It returns a *DecisionError wrapping ErrNotFound for an unknown step,
// ErrAlreadyDecided for a step that already has a decision, and
// ErrOutOfOrder for any other step that is not currently active (a later
// step, a step of an earlier generation, or any step once the proposal has
// left in_review). The proposal is unchanged on error.
func (e *Engine) Decide(ctx context.Context, stepID string, decision Decision, comment, actor string) (*Step, error) {
	fail := func(proposalID string, err error) (*Step, error) {
		e.observer.DecisionRejected(err)
		return nil, &DecisionError{StepID: stepID, ProposalID: proposalID, Decision: decision, Err: err}
	}

	if !decision.IsValid() {
		return fail("", ErrInvalidDecision)
	}

	step, err := e.store.GetStep(ctx, stepID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail("", ErrNotFound)
		}
		return nil, err
	}

	unlock := e.locks.Lock(step.ProposalID)
	defer unlock()

	// Re-read under the lock; a concurrent decision may have landed.
	p, err := e.store.GetProposal(ctx, step.ProposalID)
	if err != nil {
		return nil, err
	}
	steps, err := e.store.ListSteps(ctx, p.ID, step.Generation)
	if err != nil {
		return nil, err
	}
	chain, err := NewChain(steps)
	if err != nil {
		return nil, fmt.Errorf("load chain of proposal %s: %w", p.ID, err)
	}

	var current *Step
	for _, s := range chain.Steps() {
		if s.ID == stepID {
			current = s
		}
	}
	switch {
	case current == nil:
		return fail(p.ID, ErrNotFound)
	case current.Status.IsTerminal():
		return fail(p.ID, ErrAlreadyDecided)
	case current.Generation != p.Generation() || p.Status != proposal.StatusInReview:
		return fail(p.ID, ErrOutOfOrder)
	}

	decided, err := chain.Decide(stepID, decision, comment, actor, e.now().UTC())
	if err != nil {
		return fail(p.ID, err)
	}

	switch {
	case decision == DecisionRejected:
		err = p.Transition(proposal.StatusRejected)
	case decision == DecisionClarificationRequested:
		err = p.Transition(proposal.StatusRevisionRequested)
	case chain.Approved():
		err = p.Transition(proposal.StatusApproved)
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = e.now().UTC()

	if err := e.store.DecideStep(ctx, p, decided); err != nil {
		if errors.Is(err, ErrAlreadyDecided) || errors.Is(err, ErrOutOfOrder) {
			return fail(p.ID, err)
		}
		return nil, err
	}
	if err := e.record(ctx, audit.ActionStepDecided, p, actor, map[string]any{
		"step_id":    decided.ID,
		"generation": decided.Generation,
		"order":      decided.Order,
		"role":       string(decided.Role),
		"decision":   string(decision),
		"comment":    comment,
	}); err != nil {
		return nil, err
	}
	e.observer.StepDecided(decided.Role, decision)

	e.logger.Info("step decided",
		"proposal_id", p.ID,
		"step_id", decided.ID,
		"order", decided.Order,
		"role", decided.Role,
		"decision", decision,
		"actor", actor,
	)

	switch p.Status {
	case proposal.StatusRejected:
		err = e.record(ctx, audit.ActionProposalRejected, p, actor, map[string]any{"step_id": decided.ID, "comment": comment})
		e.observer.ProposalFinished(p.Status)
	case proposal.StatusRevisionRequested:
		err = e.record(ctx, audit.ActionRevisionRequested, p, actor, map[string]any{"step_id": decided.ID, "comment": comment})
	case proposal.StatusApproved:
		err = e.approve(ctx, p, actor)
	}
	if err != nil {
		return nil, err
	}

	return decided.Clone(), nil
}

// Resubmit applies rev to a proposal in revision_requested, re-runs the
// pipeline and creates a new step chain. Earlier generations stay stored and
// the stored proposal is unchanged on error.
func (e *Engine) Resubmit(ctx context.Context, proposalID string, rev *proposal.Revision, actor string) (*proposal.Proposal, error) {
	unlock := e.locks.Lock(proposalID)
	defer unlock()

	current, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if current.Status != proposal.StatusRevisionRequested {
		return nil, &TransitionError{ProposalID: current.ID, From: current.Status, To: proposal.StatusSubmitted}
	}

	p := current.Clone()
	if rev != nil {
		rev.Apply(p)
	}
	if err := proposal.Validate(p); err != nil {
		return nil, err
	}
	table := e.policies.Current()
	if _, err := table.Category(p.Category); err != nil {
		return nil, err
	}

	if err := p.Transition(proposal.StatusSubmitted); err != nil {
		return nil, err
	}
	p.Revision++
	p.Analysis = proposal.Analysis{}
	p.Compliance = proposal.Compliance{}
	p.UpdatedAt = e.now().UTC()

	rt, err := e.route(ctx, table, p)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveProposal(ctx, p, rt.steps...); err != nil {
		return nil, err
	}

	if err := e.recordStatus(ctx, audit.ActionProposalResubmitted, p, proposal.StatusSubmitted, actor, map[string]any{
		"revision": p.Revision,
		"budget":   p.Budget,
		"category": string(p.Category),
	}); err != nil {
		return nil, err
	}
	if err := e.recordRoute(ctx, p, rt, actor); err != nil {
		return nil, err
	}

	e.logger.Info("proposal resubmitted",
		"proposal_id", p.ID,
		"revision", p.Revision,
		"routing_path", p.Analysis.RoutingPath,
	)
	return p.Clone(), nil
}

// Complete closes an approved or procurement-stage proposal.
func (e *Engine) Complete(ctx context.Context, proposalID, actor string) (*proposal.Proposal, error) {
	unlock := e.locks.Lock(proposalID)
	defer unlock()

	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if err := p.Transition(proposal.StatusCompleted); err != nil {
		return nil, err
	}
	p.UpdatedAt = e.now().UTC()

	if err := e.store.SaveProposal(ctx, p); err != nil {
		return nil, err
	}
	if err := e.record(ctx, audit.ActionProposalCompleted, p, actor, nil); err != nil {
		return nil, err
	}
	e.observer.ProposalFinished(p.Status)

	e.logger.Info("proposal completed", "proposal_id", p.ID, "actor", actor)
	return p.Clone(), nil
}

// RecommendVendors ranks the stored vendors of category. An empty catalog
// yields an empty ranking with an explanatory reason, not an error.
func (e *Engine) RecommendVendors(ctx context.Context, category vendor.Category) (*vendor.Ranking, error) {
	snapshot, err := e.store.ListVendors(ctx, category)
	if err != nil {
		return nil, err
	}
	ranking := e.scorer.Rank(category, snapshot)

	details := map[string]any{
		"category": string(category),
		"ranked":   len(ranking.Vendors),
		"reason":   ranking.Reason,
	}
	if top := ranking.Top(); top != nil {
		details["top_vendor_id"] = top.Vendor.ID
		details["top_score"] = top.Score
	}
	if _, err := e.recorder.Record(ctx, &audit.Entry{
		Action:     audit.ActionVendorsRecommended,
		EntityType: "vendor_category",
		EntityID:   string(category),
		Details:    details,
	}); err != nil {
		return nil, err
	}
	return ranking, nil
}

// RecommendForProposal ranks vendors for every category of the proposal's
// procurement order. Only proposals that reached procurement have an order.
func (e *Engine) RecommendForProposal(ctx context.Context, proposalID string) ([]*vendor.Ranking, error) {
	order, err := e.Procurement(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	rankings := make([]*vendor.Ranking, 0, len(order.VendorCategories))
	for _, c := range order.VendorCategories {
		r, err := e.RecommendVendors(ctx, c)
		if err != nil {
			return nil, err
		}
		rankings = append(rankings, r)
	}
	return rankings, nil
}

// ImportVendors stores vendors and records one audit entry for the import.
func (e *Engine) ImportVendors(ctx context.Context, vendors []vendor.Vendor, actor string) error {
	if err := e.store.SaveVendors(ctx, vendors); err != nil {
		return err
	}
	ids := make([]string, len(vendors))
	for i, v := range vendors {
		ids[i] = v.ID
	}
	_, err := e.recorder.Record(ctx, &audit.Entry{
		Action:     audit.ActionVendorImported,
		EntityType: "vendor",
		Actor:      actor,
		Details:    map[string]any{"count": len(vendors), "vendor_ids": ids},
	})
	return err
}

// SubmitQuotation stores a vendor's quotation for a proposal in procurement
// and returns every quotation of the proposal ranked by SelectQuotation.
func (e *Engine) SubmitQuotation(ctx context.Context, proposalID, vendorID string, amount float64, notes, actor string) ([]vendor.ScoredQuotation, error) {
	unlock := e.locks.Lock(proposalID)
	defer unlock()

	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusProcurement {
		return nil, fmt.Errorf("proposal %s is %s: %w", p.ID, p.Status, ErrNotInProcurement)
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("amount %v: %w", amount, ErrInvalidQuotation)
	}

	catalog, err := e.vendorIndex(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := catalog[vendorID]
	if !ok {
		return nil, &NotFoundError{Kind: "vendor", ID: vendorID}
	}

	q := &vendor.Quotation{
		ID:          uuid.New().String(),
		ProposalID:  p.ID,
		Vendor:      v,
		Amount:      amount,
		Notes:       notes,
		SubmittedBy: actor,
		SubmittedAt: e.now().UTC(),
	}
	if err := e.store.SaveQuotation(ctx, q); err != nil {
		return nil, err
	}

	ranked, err := e.rankQuotations(ctx, p.ID, catalog)
	if err != nil {
		return nil, err
	}
	details := map[string]any{
		"quotation_id": q.ID,
		"vendor_id":    v.ID,
		"amount":       amount,
	}
	if len(ranked) > 0 {
		details["best_quotation_id"] = ranked[0].Quotation.ID
	}
	if err := e.record(ctx, audit.ActionQuotationSubmitted, p, actor, details); err != nil {
		return nil, err
	}

	e.logger.Info("quotation submitted",
		"proposal_id", p.ID,
		"quotation_id", q.ID,
		"vendor_id", v.ID,
		"amount", amount,
	)
	return ranked, nil
}

// Quotations returns the proposal's quotations ranked best first.
func (e *Engine) Quotations(ctx context.Context, proposalID string) ([]vendor.ScoredQuotation, error) {
	if _, err := e.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	catalog, err := e.vendorIndex(ctx)
	if err != nil {
		return nil, err
	}
	return e.rankQuotations(ctx, proposalID, catalog)
}

func (e *Engine) rankQuotations(ctx context.Context, proposalID string, catalog map[string]vendor.Vendor) ([]vendor.ScoredQuotation, error) {
	stored, err := e.store.ListQuotations(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	quotes := make([]vendor.Quotation, len(stored))
	for i, q := range stored {
		quotes[i] = *q
		if v, ok := catalog[q.Vendor.ID]; ok {
			quotes[i].Vendor = v
		}
	}
	return e.scorer.SelectQuotation(quotes), nil
}

func (e *Engine) vendorIndex(ctx context.Context) (map[string]vendor.Vendor, error) {
	all, err := e.store.ListVendors(ctx, "")
	if err != nil {
		return nil, err
	}
	idx := make(map[string]vendor.Vendor, len(all))
	for _, v := range all {
		idx[v.ID] = v
	}
	return idx, nil
}

// PendingStep is an active step together with its proposal.
type PendingStep struct {
	Step     *Step              `json:"step"`
	Proposal *proposal.Proposal `json:"proposal"`
}

// PendingSteps returns the active step of every in_review proposal whose
// step is assigned to role, oldest proposal first. An empty role matches
// every role.
func (e *Engine) PendingSteps(ctx context.Context, role policy.Role) ([]*PendingStep, error) {
	list, err := e.store.ListProposals(ctx, ProposalFilter{Statuses: []proposal.Status{proposal.StatusInReview}})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	var out []*PendingStep
	for _, p := range list {
		steps, err := e.store.ListSteps(ctx, p.ID, p.Generation())
		if err != nil {
			return nil, err
		}
		chain, err := NewChain(steps)
		if err != nil {
			return nil, fmt.Errorf("load chain of proposal %s: %w", p.ID, err)
		}
		active := chain.Active()
		if active == nil || (role != "" && active.Role != role) {
			continue
		}
		out = append(out, &PendingStep{Step: active.Clone(), Proposal: p})
	}
	return out, nil
}

// AuditTrail returns the proposal's audit entries in canonical order, or the
// whole log when proposalID is empty.
func (e *Engine) AuditTrail(ctx context.Context, proposalID string) ([]*audit.Entry, error) {
	if proposalID != "" {
		if _, err := e.store.GetProposal(ctx, proposalID); err != nil {
			return nil, err
		}
	}
	return e.recorder.Trail(ctx, proposalID)
}

// RecordPolicyReload writes an audit entry for a policy reload attempt.
func (e *Engine) RecordPolicyReload(ctx context.Context, path string, reloadErr error) error {
	details := map[string]any{"path": path, "ok": reloadErr == nil}
	if reloadErr != nil {
		details["error"] = reloadErr.Error()
	}
	_, err := e.recorder.Record(ctx, &audit.Entry{
		Action:     audit.ActionPolicyReloaded,
		EntityType: "policy",
		EntityID:   path,
		Actor:      "system",
		Details:    details,
	})
	return err
}

// GetProposal returns a stored proposal.
func (e *Engine) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	return e.store.GetProposal(ctx, id)
}

// ListProposals returns proposals matching filter.
func (e *Engine) ListProposals(ctx context.Context, filter ProposalFilter) ([]*proposal.Proposal, error) {
	return e.store.ListProposals(ctx, filter)
}

// Steps returns a proposal's steps. generation 0 returns all generations.
func (e *Engine) Steps(ctx context.Context, proposalID string, generation int) ([]*Step, error) {
	if _, err := e.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	return e.store.ListSteps(ctx, proposalID, generation)
}

// ActiveStep returns the step awaiting a decision, or nil when none is.
func (e *Engine) ActiveStep(ctx context.Context, proposalID string) (*Step, error) {
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusInReview {
		return nil, nil
	}
	steps, err := e.store.ListSteps(ctx, proposalID, p.Generation())
	if err != nil {
		return nil, err
	}
	chain, err := NewChain(steps)
	if err != nil {
		return nil, err
	}
	if s := chain.Active(); s != nil {
		return s.Clone(), nil
	}
	return nil, nil
}

// Procurement returns the proposal's procurement order.
func (e *Engine) Procurement(ctx context.Context, proposalID string) (*procurement.Order, error) {
	return e.store.GetOrder(ctx, proposalID)
}

// Store returns the engine's store.
func (e *Engine) Store() Store {
	return e.store
}

// routed is the outcome of route: the pipeline result and the new steps.
type routed struct {
	res   *pipeline.Result
	steps []*Step
}

// route runs the pipeline on a submitted proposal, builds the step chain for
// its current generation and moves it to in_review. It writes nothing.
func (e *Engine) route(ctx context.Context, table *policy.Table, p *proposal.Proposal) (*routed, error) {
	history, err := e.history(ctx, p)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(table, pipeline.Input{Proposal: p, Now: e.now().UTC(), History: history})
	if err != nil {
		return nil, err
	}
	res.ApplyTo(p)
	for stage, d := range res.Durations {
		e.observer.StageCompleted(string(stage), d)
	}

	now := e.now().UTC()
	generation := p.Generation()
	steps := make([]*Step, len(res.Route.Path))
	for i, role := range res.Route.Path {
		approver, ok := e.directory.Resolve(ctx, role)
		if !ok {
			e.logger.Warn("no approver configured for role", "role", role, "proposal_id", p.ID)
		}
		steps[i] = &Step{
			ID:         uuid.New().String(),
			ProposalID: p.ID,
			Generation: generation,
			Order:      i + 1,
			Role:       role,
			Approver:   approver,
			Status:     StepPending,
			CreatedAt:  now,
		}
	}

	if err := p.Transition(proposal.StatusInReview); err != nil {
		return nil, err
	}
	p.UpdatedAt = now
	return &routed{res: res, steps: steps}, nil
}

// recordRoute writes one audit entry per pipeline stage and one for the new
// chain. The stage entries carry the submitted status they ran under.
func (e *Engine) recordRoute(ctx context.Context, p *proposal.Proposal, rt *routed, actor string) error {
	if err := e.recordStatus(ctx, audit.ActionAnalysisCompleted, p, proposal.StatusSubmitted, "system", map[string]any{
		"intent":          p.Analysis.Intent,
		"budget_category": p.Analysis.BudgetCategory,
		"risk_level":      string(p.Analysis.RiskLevel),
		"risk_score":      p.Analysis.RiskScore,
		"risk_factors":    len(p.Analysis.RiskFactors),
	}); err != nil {
		return err
	}
	if err := e.recordStatus(ctx, audit.ActionComplianceChecked, p, proposal.StatusSubmitted, "system", map[string]any{
		"passed":   p.Compliance.Passed,
		"issues":   p.Compliance.Issues,
		"warnings": p.Compliance.Warnings,
	}); err != nil {
		return err
	}
	roles := make([]string, len(rt.res.Route.Path))
	for i, r := range rt.res.Route.Path {
		roles[i] = string(r)
	}
	if err := e.recordStatus(ctx, audit.ActionRoutingComputed, p, proposal.StatusSubmitted, "system", map[string]any{
		"routing_path": roles,
	}); err != nil {
		return err
	}

	stepIDs := make([]string, len(rt.steps))
	for i, s := range rt.steps {
		stepIDs[i] = s.ID
	}
	return e.record(ctx, audit.ActionWorkflowStarted, p, actor, map[string]any{
		"generation": p.Generation(),
		"steps":      len(rt.steps),
		"step_ids":   stepIDs,
	})
}

// approve handles a proposal whose chain just completed: it generates the
// procurement order when the category requires purchasing.
func (e *Engine) approve(ctx context.Context, p *proposal.Proposal, actor string) error {
	if err := e.record(ctx, audit.ActionProposalApproved, p, actor, map[string]any{
		"generation": p.Generation(),
	}); err != nil {
		return err
	}

	cp, err := e.policies.Current().Category(p.Category)
	if err != nil {
		e.logger.Warn("category no longer in policy, skipping procurement", "proposal_id", p.ID, "category", p.Category)
		e.observer.ProposalFinished(p.Status)
		return nil
	}
	if !cp.RequiresPurchasing {
		e.observer.ProposalFinished(p.Status)
		return nil
	}

	order := e.planner.Generate(p)
	if err := p.Transition(proposal.StatusProcurement); err != nil {
		return err
	}
	p.UpdatedAt = e.now().UTC()
	if err := e.store.SaveOrder(ctx, p, order); err != nil {
		return err
	}

	categories := make([]string, len(order.VendorCategories))
	for i, c := range order.VendorCategories {
		categories[i] = string(c)
	}
	if err := e.record(ctx, audit.ActionProcurementGenerated, p, "system", map[string]any{
		"order_id":          order.ID,
		"erp_reference":     order.ERPReference,
		"total_amount":      order.TotalAmount,
		"items":             len(order.Items),
		"vendor_categories": categories,
	}); err != nil {
		return err
	}
	e.observer.ProcurementGenerated(order.TotalAmount)
	e.observer.ProposalFinished(p.Status)

	e.logger.Info("procurement order generated",
		"proposal_id", p.ID,
		"erp_reference", order.ERPReference,
		"total_amount", order.TotalAmount,
	)
	return nil
}

// history returns other proposals of the same department or submitter, used
// by the schedule and quota rules.
func (e *Engine) history(ctx context.Context, p *proposal.Proposal) ([]*proposal.Proposal, error) {
	seen := make(map[string]bool)
	var out []*proposal.Proposal

	var filters []ProposalFilter
	if p.Department != "" {
		filters = append(filters, ProposalFilter{Department: p.Department})
	}
	if p.SubmittedBy != "" {
		filters = append(filters, ProposalFilter{SubmittedBy: p.SubmittedBy})
	}
	for _, f := range filters {
		list, err := e.store.ListProposals(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, other := range list {
			if other.ID == p.ID || seen[other.ID] {
				continue
			}
			seen[other.ID] = true
			out = append(out, other)
		}
	}
	return out, nil
}

func (e *Engine) record(ctx context.Context, action audit.Action, p *proposal.Proposal, actor string, details map[string]any) error {
	return e.recordStatus(ctx, action, p, p.Status, actor, details)
}

func (e *Engine) recordStatus(ctx context.Context, action audit.Action, p *proposal.Proposal, status proposal.Status, actor string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["status"] = string(status)
	_, err := e.recorder.Record(ctx, &audit.Entry{
		Action:     action,
		ProposalID: p.ID,
		EntityType: "proposal",
		EntityID:   p.ID,
		Actor:      actor,
		Details:    details,
	})
	return err
}
