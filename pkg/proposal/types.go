package proposal

import (
	"strings"
	"time"

	"mercator-hq/quorum/pkg/policy"
)

// Proposal is the unit of work submitted for institutional approval.
type Proposal struct {
	ID           string          `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	Description  string          `json:"description" yaml:"description"`
	Requirements string          `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Category     policy.Category `json:"category" yaml:"category"`
	Budget       float64         `json:"budget" yaml:"budget"`
	Date         *time.Time      `json:"date,omitempty" yaml:"date,omitempty"`
	Venue        string          `json:"venue,omitempty" yaml:"venue,omitempty"`
	Attendees    int             `json:"attendees,omitempty" yaml:"attendees,omitempty"`
	Department   string          `json:"department,omitempty" yaml:"department,omitempty"`
	SubmittedBy  string          `json:"submitted_by" yaml:"submitted_by"`

	Status Status `json:"status" yaml:"status"`

	// Revision counts resubmissions. It matches the generation of the
	// current step chain minus one.
	Revision int `json:"revision" yaml:"revision"`

	Analysis   Analysis   `json:"analysis" yaml:"analysis"`
	Compliance Compliance `json:"compliance" yaml:"compliance"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Text returns the lower-cased title, description and requirements joined
// for keyword matching.
func (p *Proposal) Text() string {
	return strings.ToLower(strings.Join([]string{p.Title, p.Description, p.Requirements}, " "))
}

// Generation returns the step chain generation the proposal is on.
func (p *Proposal) Generation() int {
	return p.Revision + 1
}

// Clone returns a deep copy of p.
func (p *Proposal) Clone() *Proposal {
	c := *p
	if p.Date != nil {
		d := *p.Date
		c.Date = &d
	}
	c.Analysis.RiskFactors = append([]RiskFactor(nil), p.Analysis.RiskFactors...)
	c.Analysis.Items = append([]string(nil), p.Analysis.Items...)
	c.Analysis.RoutingPath = append([]policy.Role(nil), p.Analysis.RoutingPath...)
	c.Compliance.Issues = append([]string(nil), p.Compliance.Issues...)
	c.Compliance.Warnings = append([]string(nil), p.Compliance.Warnings...)
	return &c
}

// RiskFactor is one independently detected concern about a proposal.
type RiskFactor struct {
	// Rule names the rule that raised the factor.
	Rule        string          `json:"rule" yaml:"rule"`
	Factor      string          `json:"factor" yaml:"factor"`
	Severity    policy.Severity `json:"severity" yaml:"severity"`
	Description string          `json:"description" yaml:"description"`
	Mitigation  string          `json:"mitigation" yaml:"mitigation"`
}

// Analysis is the bundle produced by the analysis and routing stages.
type Analysis struct {
	Intent         string          `json:"intent" yaml:"intent"`
	BudgetCategory string          `json:"budget_category" yaml:"budget_category"`
	OverCeiling    bool            `json:"over_ceiling" yaml:"over_ceiling"`
	BudgetRatio    float64         `json:"budget_ratio" yaml:"budget_ratio"`
	RiskLevel      policy.Severity `json:"risk_level" yaml:"risk_level"`
	RiskScore      float64         `json:"risk_score" yaml:"risk_score"`
	RiskFactors    []RiskFactor    `json:"risk_factors" yaml:"risk_factors"`
	Items          []string        `json:"items,omitempty" yaml:"items,omitempty"`
	Summary        string          `json:"summary" yaml:"summary"`

	RoutingPath        []policy.Role `json:"routing_path" yaml:"routing_path"`
	RoutingExplanation string        `json:"routing_explanation,omitempty" yaml:"routing_explanation,omitempty"`
}

// Compliance is the outcome of policy validation.
type Compliance struct {
	Passed   bool     `json:"passed" yaml:"passed"`
	Issues   []string `json:"issues" yaml:"issues"`
	Warnings []string `json:"warnings" yaml:"warnings"`
	Summary  string   `json:"summary" yaml:"summary"`
}

// Draft carries the submitter-supplied fields of a new proposal.
type Draft struct {
	Title        string          `json:"title" yaml:"title"`
	Description  string          `json:"description" yaml:"description"`
	Requirements string          `json:"requirements" yaml:"requirements"`
	Category     policy.Category `json:"category" yaml:"category"`
	Budget       float64         `json:"budget" yaml:"budget"`
	Date         *time.Time      `json:"date" yaml:"date"`
	Venue        string          `json:"venue" yaml:"venue"`
	Attendees    int             `json:"attendees" yaml:"attendees"`
	Department   string          `json:"department" yaml:"department"`
	SubmittedBy  string          `json:"submitted_by" yaml:"submitted_by"`
}

// Revision carries the fields a submitter changes on resubmission. Nil fields
// keep their current value.
type Revision struct {
	Title        *string          `json:"title,omitempty" yaml:"title,omitempty"`
	Description  *string          `json:"description,omitempty" yaml:"description,omitempty"`
	Requirements *string          `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Category     *policy.Category `json:"category,omitempty" yaml:"category,omitempty"`
	Budget       *float64         `json:"budget,omitempty" yaml:"budget,omitempty"`
	Date         *time.Time       `json:"date,omitempty" yaml:"date,omitempty"`
	Venue        *string          `json:"venue,omitempty" yaml:"venue,omitempty"`
	Attendees    *int             `json:"attendees,omitempty" yaml:"attendees,omitempty"`
}

// Apply copies the set fields of r onto p.
func (r *Revision) Apply(p *Proposal) {
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Requirements != nil {
		p.Requirements = *r.Requirements
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.Budget != nil {
		p.Budget = *r.Budget
	}
	if r.Date != nil {
		d := *r.Date
		p.Date = &d
	}
	if r.Venue != nil {
		p.Venue = *r.Venue
	}
	if r.Attendees != nil {
		p.Attendees = *r.Attendees
	}
}

// FromDraft builds a proposal in draft status from d.
func FromDraft(id string, d *Draft, now time.Time) *Proposal {
	p := &Proposal{
		ID:           id,
		Title:        strings.TrimSpace(d.Title),
		Description:  strings.TrimSpace(d.Description),
		Requirements: strings.TrimSpace(d.Requirements),
		Category:     policy.Category(strings.ToLower(strings.TrimSpace(string(d.Category)))),
		Budget:       d.Budget,
		Venue:        strings.TrimSpace(d.Venue),
		Attendees:    d.Attendees,
		Department:   d.Department,
		SubmittedBy:  d.SubmittedBy,
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if d.Date != nil {
		date := *d.Date
		p.Date = &date
	}
	return p
}
