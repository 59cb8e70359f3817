package workflow

import (
	"fmt"
	"sort"
	"time"
)

// Chain is the ordered step set of one generation. steps[i] has Order i+1.
// firstPending caches the index of the active step, or -1 when no step is
// actionable: every step approved, or an earlier step ended the chain.
type Chain struct {
	steps        []*Step
	firstPending int
}

// NewChain builds a chain from the steps of one generation. Orders must be
// exactly 1..N.
func NewChain(steps []*Step) (*Chain, error) {
	sorted := make([]*Step, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for i, s := range sorted {
		if s.Order != i+1 {
			return nil, fmt.Errorf("step orders are not contiguous: position %d has order %d", i+1, s.Order)
		}
		if s.Generation != sorted[0].Generation {
			return nil, fmt.Errorf("chain mixes generations %d and %d", sorted[0].Generation, s.Generation)
		}
	}

	c := &Chain{steps: sorted}
	c.recompute()
	return c, nil
}

// Steps returns the steps in order.
func (c *Chain) Steps() []*Step {
	return c.steps
}

// Len returns the number of steps.
func (c *Chain) Len() int {
	return len(c.steps)
}

// Active returns the lowest-order pending step when every lower step is
// approved, or nil.
func (c *Chain) Active() *Step {
	if c.firstPending < 0 {
		return nil
	}
	return c.steps[c.firstPending]
}

// Approved reports whether every step is approved.
func (c *Chain) Approved() bool {
	if len(c.steps) == 0 {
		return false
	}
	for _, s := range c.steps {
		if s.Status != StepApproved {
			return false
		}
	}
	return true
}

// Stopped reports whether a step was rejected or sent back for
// clarification. Later pending steps of a stopped chain stay pending and are
// never actionable.
func (c *Chain) Stopped() bool {
	for _, s := range c.steps {
		if s.Status == StepRejected || s.Status == StepClarificationRequested {
			return true
		}
	}
	return false
}

// Decide applies d to the active step and returns it.
func (c *Chain) Decide(stepID string, d Decision, comment, actor string, at time.Time) (*Step, error) {
	active := c.Active()
	if active == nil || active.ID != stepID {
		return nil, ErrOutOfOrder
	}

	active.Status = d.StepStatus()
	active.Comment = comment
	active.DecidedBy = actor
	decidedAt := at
	active.DecidedAt = &decidedAt

	c.recompute()
	return active, nil
}

func (c *Chain) recompute() {
	c.firstPending = -1
	for i, s := range c.steps {
		switch s.Status {
		case StepApproved:
			continue
		case StepPending:
			c.firstPending = i
		}
		return
	}
}
