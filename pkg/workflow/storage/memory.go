package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
	"mercator-hq/quorum/pkg/workflow"
)

var errClosed = errors.New("store closed")

// MemoryStore implements workflow.Store in process memory. It holds copies:
// values passed in and returned out never alias the stored records.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[string]*proposal.Proposal
	steps     map[string]*workflow.Step
	orders    map[string]*procurement.Order // keyed by proposal id
	vendors   map[string]vendor.Vendor
	quotes    map[string][]*vendor.Quotation // keyed by proposal id
	closed    bool
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[string]*proposal.Proposal),
		steps:     make(map[string]*workflow.Step),
		orders:    make(map[string]*procurement.Order),
		vendors:   make(map[string]vendor.Vendor),
		quotes:    make(map[string][]*vendor.Quotation),
	}
}

// SaveProposal implements workflow.Store.
func (s *MemoryStore) SaveProposal(ctx context.Context, p *proposal.Proposal, steps ...*workflow.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return workflow.NewStoreError("memory", "save_proposal", errClosed)
	}

	s.proposals[p.ID] = p.Clone()
	for _, st := range steps {
		s.steps[st.ID] = st.Clone()
	}
	return nil
}

// GetProposal implements workflow.Store.
func (s *MemoryStore) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "proposal", ID: id}
	}
	return p.Clone(), nil
}

// ListProposals implements workflow.Store.
func (s *MemoryStore) ListProposals(ctx context.Context, filter workflow.ProposalFilter) ([]*proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*proposal.Proposal
	for _, p := range s.proposals {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetStep implements workflow.Store.
func (s *MemoryStore) GetStep(ctx context.Context, id string) (*workflow.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.steps[id]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "step", ID: id}
	}
	return st.Clone(), nil
}

// ListSteps implements workflow.Store.
func (s *MemoryStore) ListSteps(ctx context.Context, proposalID string, generation int) ([]*workflow.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*workflow.Step
	for _, st := range s.steps {
		if st.ProposalID != proposalID {
			continue
		}
		if generation > 0 && st.Generation != generation {
			continue
		}
		out = append(out, st.Clone())
	}
	sortSteps(out)
	return out, nil
}

// DecideStep implements workflow.Store.
func (s *MemoryStore) DecideStep(ctx context.Context, p *proposal.Proposal, step *workflow.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return workflow.NewStoreError("memory", "decide_step", errClosed)
	}

	stored, ok := s.steps[step.ID]
	if !ok {
		return &workflow.NotFoundError{Kind: "step", ID: step.ID}
	}
	if stored.Status != workflow.StepPending {
		return workflow.ErrAlreadyDecided
	}
	if cur, ok := s.proposals[p.ID]; !ok || cur.Status != proposal.StatusInReview {
		return workflow.ErrOutOfOrder
	}

	s.proposals[p.ID] = p.Clone()
	s.steps[step.ID] = step.Clone()
	return nil
}

// SaveOrder implements workflow.Store.
func (s *MemoryStore) SaveOrder(ctx context.Context, p *proposal.Proposal, o *procurement.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return workflow.NewStoreError("memory", "save_order", errClosed)
	}

	s.proposals[p.ID] = p.Clone()
	s.orders[o.ProposalID] = cloneOrder(o)
	return nil
}

// GetOrder implements workflow.Store.
func (s *MemoryStore) GetOrder(ctx context.Context, proposalID string) (*procurement.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[proposalID]
	if !ok {
		return nil, &workflow.NotFoundError{Kind: "order", ID: proposalID}
	}
	return cloneOrder(o), nil
}

// ListOrders implements workflow.Store.
func (s *MemoryStore) ListOrders(ctx context.Context) ([]*procurement.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*procurement.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveQuotation implements workflow.Store.
func (s *MemoryStore) SaveQuotation(ctx context.Context, q *vendor.Quotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return workflow.NewStoreError("memory", "save_quotation", errClosed)
	}

	c := *q
	c.Vendor = vendor.Vendor{ID: q.Vendor.ID}
	s.quotes[q.ProposalID] = append(s.quotes[q.ProposalID], &c)
	return nil
}

// ListQuotations implements workflow.Store.
func (s *MemoryStore) ListQuotations(ctx context.Context, proposalID string) ([]*vendor.Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*vendor.Quotation, len(s.quotes[proposalID]))
	for i, q := range s.quotes[proposalID] {
		c := *q
		out[i] = &c
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SaveVendors implements workflow.Store.
func (s *MemoryStore) SaveVendors(ctx context.Context, vendors []vendor.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return workflow.NewStoreError("memory", "save_vendors", errClosed)
	}

	for _, v := range vendors {
		s.vendors[v.ID] = v
	}
	return nil
}

// ListVendors implements workflow.Store.
func (s *MemoryStore) ListVendors(ctx context.Context, category vendor.Category) ([]vendor.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []vendor.Vendor
	for _, v := range s.vendors {
		if category != "" && v.Category != category {
			continue
		}
		out = append(out, v)
	}
	sortVendors(out)
	return out, nil
}

// Ping implements workflow.Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return workflow.NewStoreError("memory", "ping", errClosed)
	}
	return nil
}

// Close implements workflow.Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sortSteps(steps []*workflow.Step) {
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Generation != steps[j].Generation {
			return steps[i].Generation < steps[j].Generation
		}
		return steps[i].Order < steps[j].Order
	})
}

func sortVendors(vendors []vendor.Vendor) {
	sort.Slice(vendors, func(i, j int) bool {
		if vendors[i].Name != vendors[j].Name {
			return vendors[i].Name < vendors[j].Name
		}
		return vendors[i].ID < vendors[j].ID
	})
}

func cloneOrder(o *procurement.Order) *procurement.Order {
	c := *o
	c.Items = append([]procurement.LineItem(nil), o.Items...)
	c.VendorCategories = append([]vendor.Category(nil), o.VendorCategories...)
	return &c
}
