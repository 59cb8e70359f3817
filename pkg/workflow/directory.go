package workflow

import (
	"context"

	"mercator-hq/quorum/pkg/policy"
)

// Directory resolves an approver role to the identity that acts for it. It
// only populates step assignment and never influences routing.
type Directory interface {
	Resolve(ctx context.Context, role policy.Role) (string, bool)
}

// StaticDirectory is a fixed role to identity map.
type StaticDirectory map[policy.Role]string

// Resolve implements Directory.
func (d StaticDirectory) Resolve(_ context.Context, role policy.Role) (string, bool) {
	id, ok := d[role]
	return id, ok && id != ""
}

// PolicyDirectory resolves roles through the Approvers map of the current
// policy table, so approver changes follow policy reloads.
type PolicyDirectory struct {
	Policies PolicySource
}

// Resolve implements Directory.
func (d PolicyDirectory) Resolve(ctx context.Context, role policy.Role) (string, bool) {
	return StaticDirectory(d.Policies.Current().Approvers).Resolve(ctx, role)
}
