// Package analytics summarizes stored workflow state into a point-in-time
// report: proposal counts by status, category, risk and budget bucket,
// per-role decision rates, requested budget and procurement spend.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
	"mercator-hq/quorum/pkg/workflow"
)

// DefaultTopVendors is the number of vendors listed in Report.TopVendors.
const DefaultTopVendors = 10

// Source is the read side of workflow.Store used by Compute.
type Source interface {
	ListProposals(ctx context.Context, filter workflow.ProposalFilter) ([]*proposal.Proposal, error)
	ListSteps(ctx context.Context, proposalID string, generation int) ([]*workflow.Step, error)
	ListOrders(ctx context.Context) ([]*procurement.Order, error)
	ListVendors(ctx context.Context, category vendor.Category) ([]vendor.Vendor, error)
}

// Bucket counts proposals and sums their budgets.
type Bucket struct {
	Count       int     `json:"count"`
	TotalBudget float64 `json:"total_budget"`
}

// RoleStats counts the decisions taken at one approver role.
type RoleStats struct {
	Role         string  `json:"role"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	Clarified    int     `json:"clarification_requested"`
	ApprovalRate float64 `json:"approval_rate"`
}

// Report is a snapshot of the workflow state.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	TotalProposals    int     `json:"total_proposals"`
	ApprovedProposals int     `json:"approved_proposals"`
	RejectedProposals int     `json:"rejected_proposals"`
	PendingProposals  int     `json:"pending_proposals"`
	ApprovalRate      float64 `json:"approval_rate"`

	TotalBudgetRequested  float64 `json:"total_budget_requested"`
	TotalProcurementSpend float64 `json:"total_procurement_spend"`
	ProcurementOrders     int     `json:"procurement_orders"`

	ByStatus         map[string]int    `json:"by_status"`
	ByCategory       map[string]int    `json:"by_category"`
	ByRisk           map[string]int    `json:"by_risk_level"`
	ByBudgetCategory map[string]Bucket `json:"by_budget_category"`

	Roles []RoleStats `json:"roles"`

	ActiveVendors     int             `json:"active_vendors"`
	VendorsByCategory map[string]int  `json:"vendors_by_category"`
	TopVendors        []vendor.Vendor `json:"top_vendors"`
}

// Compute builds a report from src. Approved counts every proposal that got
// through review (approved, procurement, completed); pending counts
// submitted and in_review. Rates are percentages rounded to one decimal.
func Compute(ctx context.Context, src Source, now time.Time) (*Report, error) {
	proposals, err := src.ListProposals(ctx, workflow.ProposalFilter{})
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt:       now,
		ByStatus:          make(map[string]int),
		ByCategory:        make(map[string]int),
		ByRisk:            make(map[string]int),
		ByBudgetCategory:  make(map[string]Bucket),
		VendorsByCategory: make(map[string]int),
	}

	roles := make(map[string]*RoleStats)
	for _, p := range proposals {
		r.TotalProposals++
		r.TotalBudgetRequested += p.Budget
		r.ByStatus[string(p.Status)]++
		r.ByCategory[string(p.Category)]++
		if p.Analysis.RiskLevel != "" {
			r.ByRisk[string(p.Analysis.RiskLevel)]++
		}
		if bc := p.Analysis.BudgetCategory; bc != "" {
			b := r.ByBudgetCategory[bc]
			b.Count++
			b.TotalBudget += p.Budget
			r.ByBudgetCategory[bc] = b
		}

		switch p.Status {
		case proposal.StatusApproved, proposal.StatusProcurement, proposal.StatusCompleted:
			r.ApprovedProposals++
		case proposal.StatusRejected:
			r.RejectedProposals++
		case proposal.StatusSubmitted, proposal.StatusInReview:
			r.PendingProposals++
		}

		steps, err := src.ListSteps(ctx, p.ID, 0)
		if err != nil {
			return nil, err
		}
		for _, s := range steps {
			rs, ok := roles[string(s.Role)]
			if !ok {
				rs = &RoleStats{Role: string(s.Role)}
				roles[string(s.Role)] = rs
			}
			switch s.Status {
			case workflow.StepPending:
				rs.Pending++
			case workflow.StepApproved:
				rs.Approved++
			case workflow.StepRejected:
				rs.Rejected++
			case workflow.StepClarificationRequested:
				rs.Clarified++
			}
		}
	}
	r.ApprovalRate = percent(r.ApprovedProposals, r.TotalProposals)

	for _, rs := range roles {
		rs.ApprovalRate = percent(rs.Approved, rs.Approved+rs.Rejected)
		r.Roles = append(r.Roles, *rs)
	}
	sort.Slice(r.Roles, func(i, j int) bool { return r.Roles[i].Role < r.Roles[j].Role })

	orders, err := src.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		r.ProcurementOrders++
		r.TotalProcurementSpend += o.TotalAmount
	}
	r.TotalProcurementSpend = round(r.TotalProcurementSpend, 2)

	vendors, err := src.ListVendors(ctx, "")
	if err != nil {
		return nil, err
	}
	var active []vendor.Vendor
	for _, v := range vendors {
		r.VendorsByCategory[string(v.Category)]++
		if v.Active {
			r.ActiveVendors++
			active = append(active, v)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Rating > active[j].Rating })
	if len(active) > DefaultTopVendors {
		active = active[:DefaultTopVendors]
	}
	r.TopVendors = active

	return r, nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round(float64(part)/float64(whole)*100, 1)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
