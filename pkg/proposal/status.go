package proposal

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSubmitted         Status = "submitted"
	StatusInReview          Status = "in_review"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusRevisionRequested Status = "revision_requested"
	StatusProcurement       Status = "procurement"
	StatusCompleted         Status = "completed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusInReview,
	StatusApproved,
	StatusRejected,
	StatusRevisionRequested,
	StatusProcurement,
	StatusCompleted,
}

var transitions = map[Status][]Status{
	StatusDraft:             {StatusSubmitted},
	StatusSubmitted:         {StatusInReview},
	StatusInReview:          {StatusApproved, StatusRejected, StatusRevisionRequested},
	StatusApproved:          {StatusProcurement, StatusCompleted},
	StatusRevisionRequested: {StatusSubmitted},
	StatusProcurement:       {StatusCompleted},
}

// ErrInvalidTransition indicates a status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports a rejected status change.
type TransitionError struct {
	ProposalID string
	From       Status
	To         Status
}

// Error returns the error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("proposal %s: cannot move from %s to %s", e.ProposalID, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok || s == StatusRejected || s == StatusCompleted
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// IsActive reports whether a proposal in s still occupies the review pipeline.
func (s Status) IsActive() bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusApproved, StatusProcurement:
		return true
	}
	return false
}

// CanTransition reports whether from → to is permitted.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves p to status to, or returns a *TransitionError.
func (p *Proposal) Transition(to Status) error {
	if !CanTransition(p.Status, to) {
		return &TransitionError{ProposalID: p.ID, From: p.Status, To: to}
	}
	p.Status = to
	return nil
}
