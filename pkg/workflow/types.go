package workflow

import (
	"time"

	"mercator-hq/quorum/pkg/policy"
)

// StepStatus is the state of one approval step.
type StepStatus string

const (
	StepPending                StepStatus = "pending"
	StepApproved               StepStatus = "approved"
	StepRejected               StepStatus = "rejected"
	StepClarificationRequested StepStatus = "clarification_requested"
)

// IsTerminal reports whether the step has been decided.
func (s StepStatus) IsTerminal() bool {
	return s == StepApproved || s == StepRejected || s == StepClarificationRequested
}

// Decision is an approver's verdict on the active step.
type Decision string

const (
	DecisionApproved               Decision = "approved"
	DecisionRejected               Decision = "rejected"
	DecisionClarificationRequested Decision = "clarification_requested"
)

// Decisions lists the accepted decision values.
var Decisions = []Decision{DecisionApproved, DecisionRejected, DecisionClarificationRequested}

// IsValid reports whether d is an accepted decision value.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionClarificationRequested:
		return true
	}
	return false
}

// StepStatus returns the status a step takes after decision d.
func (d Decision) StepStatus() StepStatus {
	return StepStatus(d)
}

// Step is one approval step. Steps of a generation are created together at
// routing time; only Status, Comment, DecidedBy and DecidedAt change later.
type Step struct {
	ID         string      `json:"id"`
	ProposalID string      `json:"proposal_id"`
	Generation int         `json:"generation"`
	Order      int         `json:"order"`
	Role       policy.Role `json:"role"`
	Approver   string      `json:"approver,omitempty"`
	Status     StepStatus  `json:"status"`
	Comment    string      `json:"comment,omitempty"`
	DecidedBy  string      `json:"decided_by,omitempty"`
	DecidedAt  *time.Time  `json:"decided_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Clone returns a copy of s.
func (s *Step) Clone() *Step {
	c := *s
	if s.DecidedAt != nil {
		t := *s.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
