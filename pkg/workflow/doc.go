// Package workflow runs the approval lifecycle of a proposal.
//
// A submitted proposal passes through the analysis, compliance and routing
// stages once per revision. Routing yields an ordered list of approver
// roles; the engine turns it into a Chain of Steps tagged with the
// proposal's generation. Only the lowest-order pending step of the current
// generation accepts a decision:
//
//   - approved advances the chain; approving the last step approves the
//     proposal and, for categories that require purchasing, generates a
//     procurement order.
//   - rejected ends the proposal. Remaining steps stay pending.
//   - clarification_requested sends the proposal back to its submitter.
//     Resubmission re-runs the pipeline and starts a new generation at
//     order 1; earlier steps are kept for the record.
//
// Every state change is written to the audit log before the call returns.
// Decisions on one proposal are serialized; a second decision on a step that
// was decided concurrently fails with ErrAlreadyDecided, also when the other
// decision came from another process sharing the store.
//
// Proposals in procurement collect vendor quotations, ranked on every
// submission. PendingSteps lists the steps awaiting each approver role.
//
// Basic usage:
//
//	eng := workflow.NewEngine(store, rec, holder)
//	p, err := eng.Submit(ctx, draft, "faculty-17")
//	step, err := eng.ActiveStep(ctx, p.ID)
//	_, err = eng.Decide(ctx, step.ID, workflow.DecisionApproved, "", "hod-cs")
package workflow
