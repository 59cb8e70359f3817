package audit

import (
	"context"
	"io"
	"time"
)

// Action tags what an audit entry records.
type Action string

const (
	ActionProposalSubmitted    Action = "proposal_submitted"
	ActionAnalysisCompleted    Action = "analysis_completed"
	ActionComplianceChecked    Action = "compliance_checked"
	ActionRoutingComputed      Action = "routing_computed"
	ActionWorkflowStarted      Action = "workflow_started"
	ActionStepDecided          Action = "step_decided"
	ActionProposalApproved     Action = "proposal_approved"
	ActionProposalRejected     Action = "proposal_rejected"
	ActionRevisionRequested    Action = "revision_requested"
	ActionProposalResubmitted  Action = "proposal_resubmitted"
	ActionProcurementGenerated Action = "procurement_generated"
	ActionProposalCompleted    Action = "proposal_completed"
	ActionVendorsRecommended   Action = "vendors_recommended"
	ActionVendorImported       Action = "vendor_imported"
	ActionQuotationSubmitted   Action = "quotation_submitted"
	ActionPolicyReloaded       Action = "policy_reloaded"
)

// Entry is one immutable audit record. Entries are created once and never
// updated or deleted; (Timestamp, Sequence) is the canonical order.
type Entry struct {
	// ID is a unique identifier (UUID v4) assigned by the recorder.
	ID string `json:"id"`

	// Sequence is a monotonically increasing position assigned by storage.
	// It breaks ties between entries with equal timestamps.
	Sequence int64 `json:"sequence"`

	Action Action `json:"action"`

	// ProposalID links the entry to a proposal timeline. Empty for
	// process-wide events such as policy reloads.
	ProposalID string `json:"proposal_id,omitempty"`

	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Actor      string `json:"actor,omitempty"`

	Details map[string]any `json:"details,omitempty"`

	// ContentHash is the SHA-256 of the canonical entry content. See Hash.
	ContentHash string `json:"content_hash"`

	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a copy of e. Details are copied one level deep.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// Query filters audit entries. Zero-valued fields do not filter.
type Query struct {
	ProposalID string
	Actions    []Action
	Actor      string
	EntityID   string
	StartTime  *time.Time
	EndTime    *time.Time

	// AfterSequence returns only entries with a larger sequence number.
	AfterSequence int64

	// Descending reverses the canonical order.
	Descending bool

	// BySequence orders by sequence number alone. Used for incremental
	// reads that page with AfterSequence.
	BySequence bool

	Limit  int
	Offset int
}

// Storage persists audit entries. Implementations must make Append atomic:
// an entry is either fully stored or not stored at all. There is no update or
// delete operation.
type Storage interface {
	// Append stores e and sets e.Sequence.
	Append(ctx context.Context, e *Entry) error

	// Query returns entries matching q in canonical order.
	Query(ctx context.Context, q *Query) ([]*Entry, error)

	// Count returns the number of entries matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Exporter writes entries in an external format.
type Exporter interface {
	Export(ctx context.Context, entries []*Entry, w io.Writer) error

	// Extension is the file extension without the dot ("json", "csv").
	Extension() string
}
