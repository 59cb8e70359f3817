// Package routing computes the ordered approver roles a proposal must pass
// through. Routing is a pure function of the proposal, its analysis and
// compliance result, and the policy table.
package routing

import (
	"fmt"
	"strings"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

// Route is a computed routing path with the reason each role was included.
type Route struct {
	Path    []policy.Role
	Reasons map[policy.Role]string
}

// Explain renders the route for humans.
func (r *Route) Explain(p *proposal.Proposal, a proposal.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Routing path for %q: budget category %s, risk %s, category %s, %d expected attendees.\n",
		p.Title, a.BudgetCategory, a.RiskLevel, p.Category, p.Attendees)
	for i, role := range r.Path {
		fmt.Fprintf(&sb, "  Step %d: %s (%s)\n", i+1, role, r.Reasons[role])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Compute builds the routing path:
//
//  1. start from the category's base approvers;
//  2. budget above the mid threshold appends senior leadership;
//  3. budget above the high threshold appends finance;
//  4. high risk or any compliance issue puts senior leadership directly
//     after department when it is not already on the path;
//  5. any compliance issue appends the admin override as the final step.
//
// Each role appears at most once.
func Compute(table *policy.Table, p *proposal.Proposal, a proposal.Analysis, c proposal.Compliance) (*Route, error) {
	cp, err := table.Category(p.Category)
	if err != nil {
		return nil, err
	}

	r := &Route{
		Path:    make([]policy.Role, 0, len(cp.BaseApprovers)+3),
		Reasons: make(map[policy.Role]string),
	}
	for _, role := range cp.BaseApprovers {
		r.add(role, fmt.Sprintf("base approver for %s proposals", p.Category))
	}

	if p.Budget > cp.MidThreshold {
		r.add(policy.RoleSeniorLeadership, fmt.Sprintf("budget above %.0f", cp.MidThreshold))
	}
	if p.Budget > cp.HighThreshold {
		r.add(policy.RoleFinance, fmt.Sprintf("budget above %.0f", cp.HighThreshold))
	}

	hasIssues := len(c.Issues) > 0
	if (a.RiskLevel == policy.SeverityHigh || hasIssues) && !r.has(policy.RoleSeniorLeadership) {
		reason := "high risk"
		if hasIssues {
			reason = "compliance issues present"
		}
		r.insertAfter(policy.RoleDepartment, policy.RoleSeniorLeadership, reason)
	}

	if hasIssues {
		r.remove(policy.RoleAdminOverride)
		r.add(policy.RoleAdminOverride, fmt.Sprintf("%d compliance issue(s) require override", len(c.Issues)))
	}
	return r, nil
}

// Apply computes the route and records it on a, returning the updated bundle.
func Apply(table *policy.Table, p *proposal.Proposal, a proposal.Analysis, c proposal.Compliance) (proposal.Analysis, error) {
	r, err := Compute(table, p, a, c)
	if err != nil {
		return a, err
	}
	a.RoutingPath = r.Path
	a.RoutingExplanation = r.Explain(p, a)
	return a, nil
}

func (r *Route) has(role policy.Role) bool {
	_, ok := r.Reasons[role]
	return ok
}

func (r *Route) add(role policy.Role, reason string) {
	if r.has(role) {
		return
	}
	r.Path = append(r.Path, role)
	r.Reasons[role] = reason
}

func (r *Route) insertAfter(anchor, role policy.Role, reason string) {
	at := len(r.Path)
	for i, existing := range r.Path {
		if existing == anchor {
			at = i + 1
			break
		}
	}
	r.Path = append(r.Path, "")
	copy(r.Path[at+1:], r.Path[at:])
	r.Path[at] = role
	r.Reasons[role] = reason
}

func (r *Route) remove(role policy.Role) {
	if !r.has(role) {
		return
	}
	out := r.Path[:0]
	for _, existing := range r.Path {
		if existing != role {
			out = append(out, existing)
		}
	}
	r.Path = out
	delete(r.Reasons, role)
}
