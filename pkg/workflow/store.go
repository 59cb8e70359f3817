package workflow

import (
	"context"
	"time"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
)

// ProposalFilter selects proposals. Zero-valued fields do not filter.
type ProposalFilter struct {
	Statuses    []proposal.Status
	Category    policy.Category
	Department  string
	SubmittedBy string
	Since       *time.Time
	Limit       int
}

// Matches reports whether p satisfies f. Stores without query support use it
// to filter in memory.
func (f *ProposalFilter) Matches(p *proposal.Proposal) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if p.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Department != "" && p.Department != f.Department {
		return false
	}
	if f.SubmittedBy != "" && p.SubmittedBy != f.SubmittedBy {
		return false
	}
	if f.Since != nil && p.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Store persists proposals, steps, orders and vendors. Every method that
// takes a proposal together with related records writes them atomically so
// the proposal and its steps are never observed out of step with each other.
// Implementations return errors wrapping ErrNotFound for unknown ids.
type Store interface {
	// SaveProposal upserts p and the given steps.
	SaveProposal(ctx context.Context, p *proposal.Proposal, steps ...*Step) error

	GetProposal(ctx context.Context, id string) (*proposal.Proposal, error)

	// ListProposals returns matching proposals, newest first.
	ListProposals(ctx context.Context, filter ProposalFilter) ([]*proposal.Proposal, error)

	GetStep(ctx context.Context, id string) (*Step, error)

	// ListSteps returns the steps of a proposal ordered by generation then
	// order. generation 0 returns every generation.
	ListSteps(ctx context.Context, proposalID string, generation int) ([]*Step, error)

	// DecideStep stores the decision held in step together with p, the
	// proposal state it produced. The write only applies while the stored
	// step is still pending and the stored proposal is still in_review; it
	// otherwise fails with ErrAlreadyDecided or ErrOutOfOrder and changes
	// nothing. This is the guard that holds across processes sharing a
	// database.
	DecideStep(ctx context.Context, p *proposal.Proposal, step *Step) error

	// SaveOrder upserts p and inserts o.
	SaveOrder(ctx context.Context, p *proposal.Proposal, o *procurement.Order) error

	GetOrder(ctx context.Context, proposalID string) (*procurement.Order, error)

	ListOrders(ctx context.Context) ([]*procurement.Order, error)

	// SaveQuotation inserts q.
	SaveQuotation(ctx context.Context, q *vendor.Quotation) error

	// ListQuotations returns the proposal's quotations in submission order.
	// Only Vendor.ID is set on the returned quotations.
	ListQuotations(ctx context.Context, proposalID string) ([]*vendor.Quotation, error)

	// SaveVendors upserts vendors by id.
	SaveVendors(ctx context.Context, vendors []vendor.Vendor) error

	// ListVendors returns vendors in category, or all vendors when category
	// is empty, ordered by name.
	ListVendors(ctx context.Context, category vendor.Category) ([]vendor.Vendor, error)

	Ping(ctx context.Context) error
	Close() error
}

// PolicySource supplies the current policy table. *policy.Holder satisfies
// it; tables are immutable so callers may keep the returned pointer.
type PolicySource interface {
	Current() *policy.Table
}

// StaticPolicy is a PolicySource that always returns the same table.
type StaticPolicy struct {
	Table *policy.Table
}

// Current implements PolicySource.
func (s StaticPolicy) Current() *policy.Table {
	return s.Table
}

// Observer receives engine events for metrics. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	ProposalSubmitted(category policy.Category)
	StageCompleted(stage string, d time.Duration)
	StepDecided(role policy.Role, decision Decision)
	DecisionRejected(reason error)
	ProposalFinished(status proposal.Status)
	ProcurementGenerated(amount float64)
}

type nopObserver struct{}

func (nopObserver) ProposalSubmitted(policy.Category) {}
func (nopObserver) StageCompleted(string, time.Duration) {}
func (nopObserver) StepDecided(policy.Role, Decision) {}
func (nopObserver) DecisionRejected(error) {}
func (nopObserver) ProposalFinished(proposal.Status) {}
func (nopObserver) ProcurementGenerated(float64) {}
