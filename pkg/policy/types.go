package policy

import (
	"sort"
	"time"
)

// Category identifies a proposal type. Every category referenced by a proposal
// must have an entry in the Table.
type Category string

// Built-in proposal categories.
const (
	CategoryWorkshop      Category = "workshop"
	CategorySeminar       Category = "seminar"
	CategoryConference    Category = "conference"
	CategoryGuestLecture  Category = "guest_lecture"
	CategoryCulturalFest  Category = "cultural_fest"
	CategoryTechnicalFest Category = "technical_fest"
	CategorySportsEvent   Category = "sports_event"
	CategoryOther         Category = "other"
)

// Role is an approver role in the institutional hierarchy.
type Role string

// Approver roles, in hierarchy order.
const (
	RoleDepartment       Role = "department"
	RoleSeniorLeadership Role = "senior_leadership"
	RoleFinance          Role = "finance"
	RoleAdminOverride    Role = "admin_override"
)

// KnownRoles lists every role the router can emit.
var KnownRoles = []Role{RoleDepartment, RoleSeniorLeadership, RoleFinance, RoleAdminOverride}

// IsKnown reports whether r is one of KnownRoles.
func (r Role) IsKnown() bool {
	for _, k := range KnownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// Severity grades a risk factor. The zero value is not a valid severity.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities: low < medium < high. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// IsValid reports whether s is low, medium or high.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Field names a proposal field that a category can make mandatory.
type Field string

const (
	FieldVenue        Field = "venue"
	FieldDate         Field = "date"
	FieldAttendees    Field = "attendees"
	FieldRequirements Field = "requirements"
)

func (f Field) isKnown() bool {
	switch f {
	case FieldVenue, FieldDate, FieldAttendees, FieldRequirements:
		return true
	}
	return false
}

// Bucket is a named budget band. A budget falls in the first bucket whose
// ceiling is greater than or equal to it.
type Bucket struct {
	Name    string  `yaml:"name"`
	Ceiling float64 `yaml:"ceiling"`
}

// CategoryPolicy holds the thresholds and approver requirements of one category.
type CategoryPolicy struct {
	// Ceiling is the maximum budget permitted without a compliance issue.
	Ceiling float64 `yaml:"ceiling"`

	// MidThreshold escalates to senior leadership when exceeded.
	MidThreshold float64 `yaml:"mid_threshold"`

	// HighThreshold escalates to finance when exceeded.
	HighThreshold float64 `yaml:"high_threshold"`

	// Buckets are budget bands in ascending ceiling order. When empty they are
	// derived from the thresholds as small, medium and large.
	Buckets []Bucket `yaml:"buckets"`

	// BaseApprovers is the minimum routing path. It always contains department.
	BaseApprovers []Role `yaml:"base_approvers"`

	// CrowdThreshold flags attendee counts above it. Zero disables the rule.
	CrowdThreshold int `yaml:"crowd_threshold"`

	// MinLeadTime is the minimum notice between evaluation and the event date.
	MinLeadTime time.Duration `yaml:"min_lead_time"`

	RequiredFields []Field `yaml:"required_fields"`

	// RequiresPurchasing moves approved proposals on to procurement.
	RequiresPurchasing bool `yaml:"requires_purchasing"`
}

// BucketFor returns the smallest bucket whose ceiling covers budget. When the
// budget exceeds every bucket the highest one is returned with over set.
func (cp *CategoryPolicy) BucketFor(budget float64) (Bucket, bool) {
	for _, bucket := range cp.Buckets {
		if budget <= bucket.Ceiling {
			return bucket, false
		}
	}
	if len(cp.Buckets) == 0 {
		return Bucket{Name: "unbounded", Ceiling: cp.Ceiling}, budget > cp.Ceiling
	}
	return cp.Buckets[len(cp.Buckets)-1], true
}

// Requires reports whether f is mandatory for the category.
func (cp *CategoryPolicy) Requires(f Field) bool {
	for _, r := range cp.RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}

// deriveBuckets fills Buckets from the thresholds when none were configured.
func (cp *CategoryPolicy) deriveBuckets() {
	if len(cp.Buckets) > 0 {
		sort.SliceStable(cp.Buckets, func(i, j int) bool {
			return cp.Buckets[i].Ceiling < cp.Buckets[j].Ceiling
		})
		return
	}
	if cp.MidThreshold > 0 && cp.MidThreshold < cp.Ceiling {
		cp.Buckets = append(cp.Buckets, Bucket{Name: "small", Ceiling: cp.MidThreshold})
	}
	if cp.HighThreshold > cp.MidThreshold && cp.HighThreshold < cp.Ceiling {
		cp.Buckets = append(cp.Buckets, Bucket{Name: "medium", Ceiling: cp.HighThreshold})
	}
	cp.Buckets = append(cp.Buckets, Bucket{Name: "large", Ceiling: cp.Ceiling})
}

// KeywordRule raises a risk factor when its keyword appears in the proposal text.
type KeywordRule struct {
	Keyword     string   `yaml:"keyword"`
	Factor      string   `yaml:"factor"`
	Severity    Severity `yaml:"severity"`
	Description string   `yaml:"description"`
	Mitigation  string   `yaml:"mitigation"`
}

// Table is the complete approval policy. A Table is treated as immutable once
// built: callers take a snapshot and thread it through a pipeline run. Use
// Clone to derive a modified copy.
type Table struct {
	Categories map[Category]*CategoryPolicy `yaml:"categories"`

	// RiskWeights converts factor severities into a numeric risk score.
	RiskWeights map[Severity]float64 `yaml:"risk_weights"`

	// NearLimitRatio is the budget/ceiling ratio above which a proposal is
	// flagged as near its limit.
	NearLimitRatio float64 `yaml:"near_limit_ratio"`

	MinDescriptionLength int `yaml:"min_description_length"`
	MinDescriptionWords  int `yaml:"min_description_words"`

	RiskKeywords    []KeywordRule `yaml:"risk_keywords"`
	BannedKeywords  []string      `yaml:"banned_keywords"`
	WarningKeywords []string      `yaml:"warning_keywords"`

	// MaxEventsPerDepartment caps active proposals per department per year.
	// Zero disables the quota.
	MaxEventsPerDepartment int `yaml:"max_events_per_department"`

	// Approvers maps a role to the identity that acts for it.
	Approvers map[Role]string `yaml:"approvers"`
}

// Category returns the policy for c, or a ConfigError wrapping
// ErrUnknownCategory when the table has no entry for it.
func (t *Table) Category(c Category) (*CategoryPolicy, error) {
	cp, ok := t.Categories[c]
	if !ok || cp == nil {
		return nil, &ConfigError{Category: c, Err: ErrUnknownCategory}
	}
	return cp, nil
}

// CategoryNames returns the configured categories in sorted order.
func (t *Table) CategoryNames() []Category {
	names := make([]Category, 0, len(t.Categories))
	for c := range t.Categories {
		names = append(names, c)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Weight returns the configured weight for s.
func (t *Table) Weight(s Severity) float64 {
	return t.RiskWeights[s]
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	c := *t
	c.Categories = make(map[Category]*CategoryPolicy, len(t.Categories))
	for name, cp := range t.Categories {
		cpy := *cp
		cpy.Buckets = append([]Bucket(nil), cp.Buckets...)
		cpy.BaseApprovers = append([]Role(nil), cp.BaseApprovers...)
		cpy.RequiredFields = append([]Field(nil), cp.RequiredFields...)
		c.Categories[name] = &cpy
	}
	c.RiskWeights = make(map[Severity]float64, len(t.RiskWeights))
	for k, v := range t.RiskWeights {
		c.RiskWeights[k] = v
	}
	c.Approvers = make(map[Role]string, len(t.Approvers))
	for k, v := range t.Approvers {
		c.Approvers[k] = v
	}
	c.RiskKeywords = append([]KeywordRule(nil), t.RiskKeywords...)
	c.BannedKeywords = append([]string(nil), t.BannedKeywords...)
	c.WarningKeywords = append([]string(nil), t.WarningKeywords...)
	return &c
}

// finalize derives computed fields. It is idempotent.
func (t *Table) finalize() {
	for _, cp := range t.Categories {
		if cp != nil {
			cp.deriveBuckets()
		}
	}
}
