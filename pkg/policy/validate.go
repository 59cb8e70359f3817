package policy

import "fmt"

// Validate checks every category and table-wide setting, collecting all
// problems into a single *ConfigError wrapping ErrInvalidTable.
func Validate(t *Table) error {
	var errs []FieldError

	if len(t.Categories) == 0 {
		errs = append(errs, FieldError{Field: "categories", Message: "at least one category is required"})
	}
	for _, name := range t.CategoryNames() {
		errs = append(errs, validateCategory(name, t.Categories[name])...)
	}

	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh} {
		w, ok := t.RiskWeights[s]
		if !ok {
			errs = append(errs, FieldError{Field: "risk_weights." + string(s), Message: "weight is required"})
		} else if w < 0 {
			errs = append(errs, FieldError{Field: "risk_weights." + string(s), Message: "must be non-negative"})
		}
	}
	if t.NearLimitRatio <= 0 || t.NearLimitRatio > 1 {
		errs = append(errs, FieldError{Field: "near_limit_ratio", Message: "must be in (0, 1]"})
	}
	if t.MinDescriptionLength < 0 {
		errs = append(errs, FieldError{Field: "min_description_length", Message: "must be non-negative"})
	}
	if t.MinDescriptionWords < 0 {
		errs = append(errs, FieldError{Field: "min_description_words", Message: "must be non-negative"})
	}
	if t.MaxEventsPerDepartment < 0 {
		errs = append(errs, FieldError{Field: "max_events_per_department", Message: "must be non-negative"})
	}
	for i, kw := range t.RiskKeywords {
		field := fmt.Sprintf("risk_keywords[%d]", i)
		if kw.Keyword == "" {
			errs = append(errs, FieldError{Field: field + ".keyword", Message: "keyword is required"})
		}
		if !kw.Severity.IsValid() {
			errs = append(errs, FieldError{Field: field + ".severity", Message: fmt.Sprintf("invalid severity %q", kw.Severity)})
		}
	}
	for role := range t.Approvers {
		if !role.IsKnown() {
			errs = append(errs, FieldError{Field: "approvers." + string(role), Message: "unknown role"})
		}
	}

	if len(errs) > 0 {
		return &ConfigError{Problems: errs, Err: ErrInvalidTable}
	}
	return nil
}

func validateCategory(name Category, cp *CategoryPolicy) []FieldError {
	prefix := "categories." + string(name)
	if cp == nil {
		return []FieldError{{Field: prefix, Message: "category policy is empty"}}
	}

	var errs []FieldError
	if cp.Ceiling <= 0 {
		errs = append(errs, FieldError{Field: prefix + ".ceiling", Message: "must be positive"})
	}
	if cp.MidThreshold <= 0 {
		errs = append(errs, FieldError{Field: prefix + ".mid_threshold", Message: "must be positive"})
	}
	if cp.HighThreshold < cp.MidThreshold {
		errs = append(errs, FieldError{Field: prefix + ".high_threshold", Message: "must not be below mid_threshold"})
	}

	for i, b := range cp.Buckets {
		if b.Name == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("%s.buckets[%d].name", prefix, i), Message: "name is required"})
		}
		if b.Ceiling <= 0 {
			errs = append(errs, FieldError{Field: fmt.Sprintf("%s.buckets[%d].ceiling", prefix, i), Message: "must be positive"})
		}
	}
	if n := len(cp.Buckets); n > 0 && cp.Buckets[n-1].Ceiling != cp.Ceiling {
		errs = append(errs, FieldError{Field: prefix + ".buckets", Message: "highest bucket ceiling must equal the category ceiling"})
	}

	seen := make(map[Role]bool, len(cp.BaseApprovers))
	for _, r := range cp.BaseApprovers {
		if !r.IsKnown() {
			errs = append(errs, FieldError{Field: prefix + ".base_approvers", Message: fmt.Sprintf("unknown role %q", r)})
		}
		if seen[r] {
			errs = append(errs, FieldError{Field: prefix + ".base_approvers", Message: fmt.Sprintf("duplicate role %q", r)})
		}
		seen[r] = true
	}
	if len(cp.BaseApprovers) == 0 || cp.BaseApprovers[0] != RoleDepartment {
		errs = append(errs, FieldError{Field: prefix + ".base_approvers", Message: "must start with the department role"})
	}

	if cp.CrowdThreshold < 0 {
		errs = append(errs, FieldError{Field: prefix + ".crowd_threshold", Message: "must be non-negative"})
	}
	if cp.MinLeadTime < 0 {
		errs = append(errs, FieldError{Field: prefix + ".min_lead_time", Message: "must be non-negative"})
	}
	for _, f := range cp.RequiredFields {
		if !f.isKnown() {
			errs = append(errs, FieldError{Field: prefix + ".required_fields", Message: fmt.Sprintf("unknown field %q", f)})
		}
	}
	return errs
}
