package workflow

import (
	"errors"
	"fmt"

	"mercator-hq/quorum/pkg/proposal"
)

var (
	// ErrNotFound indicates an unknown proposal, step or order.
	ErrNotFound = errors.New("not found")

	// ErrOutOfOrder indicates a decision on a step that is not the active
	// step of its proposal.
	ErrOutOfOrder = errors.New("step is not the active step")

	// ErrAlreadyDecided indicates a decision on a step that already has one.
	ErrAlreadyDecided = errors.New("step already decided")

	// ErrInvalidDecision indicates a decision value outside Decisions.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrNotInProcurement indicates a quotation for a proposal that has no
	// open procurement order.
	ErrNotInProcurement = errors.New("proposal is not in procurement")

	// ErrInvalidQuotation indicates a quotation with a non-positive amount.
	ErrInvalidQuotation = errors.New("invalid quotation")

	// ErrInvalidTransition is the proposal lifecycle violation sentinel.
	ErrInvalidTransition = proposal.ErrInvalidTransition
)

// TransitionError reports a rejected proposal status change.
type TransitionError = proposal.TransitionError

// DecisionError reports a rejected decision. The proposal and step are
// unchanged when it is returned.
type DecisionError struct {
	StepID     string
	ProposalID string
	Decision   Decision
	Err        error
}

// Error returns the error message.
func (e *DecisionError) Error() string {
	if e.ProposalID == "" {
		return fmt.Sprintf("decide step %s: %v", e.StepID, e.Err)
	}
	return fmt.Sprintf("decide step %s of proposal %s: %v", e.StepID, e.ProposalID, e.Err)
}

// Unwrap returns the sentinel cause.
func (e *DecisionError) Unwrap() error {
	return e.Err
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "proposal", "step", "order", "vendor"
	ID   string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StoreError represents a persistence failure.
type StoreError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("workflow store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{Backend: backend, Operation: operation, Cause: cause}
}
