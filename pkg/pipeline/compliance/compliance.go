// Package compliance validates a proposal and its analysis against the
// policy table. Every rule runs on every proposal so the submitter sees the
// complete set of issues and warnings at once.
package compliance

import (
	"fmt"
	"strings"
	"time"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

// Input is everything a compliance check may look at.
type Input struct {
	Proposal *proposal.Proposal
	Analysis proposal.Analysis

	// Now is the evaluation time used by the lead-time rule.
	Now time.Time

	// History holds other proposals from the same department or submitter.
	// Entries with the proposal's own ID are ignored.
	History []*proposal.Proposal
}

// RuleKind tags a compliance rule.
type RuleKind string

const (
	RuleBudgetCeiling    RuleKind = "budget_ceiling"
	RuleRequiredFields   RuleKind = "required_fields"
	RuleLeadTime         RuleKind = "lead_time"
	RuleRiskEscalation   RuleKind = "risk_escalation"
	RuleBannedKeywords   RuleKind = "banned_keywords"
	RuleWarningKeywords  RuleKind = "warning_keywords"
	RuleScheduleConflict RuleKind = "schedule_conflict"
	RuleDepartmentQuota  RuleKind = "department_quota"
)

// Finding is one rule outcome. Issues fail compliance; warnings do not.
type Finding struct {
	Rule    RuleKind
	Issue   bool
	Message string
}

type check struct {
	kind RuleKind
	eval func(*policy.Table, *policy.CategoryPolicy, *Input) []Finding
}

var checks = []check{
	{RuleBudgetCeiling, checkBudgetCeiling},
	{RuleRequiredFields, checkRequiredFields},
	{RuleLeadTime, checkLeadTime},
	{RuleRiskEscalation, checkRiskEscalation},
	{RuleBannedKeywords, checkBannedKeywords},
	{RuleWarningKeywords, checkWarningKeywords},
	{RuleScheduleConflict, checkScheduleConflict},
	{RuleDepartmentQuota, checkDepartmentQuota},
}

// Validate runs every rule and returns the compliance result. The only error
// is a *policy.ConfigError for a category missing from table.
func Validate(table *policy.Table, in Input) (proposal.Compliance, error) {
	findings, err := Evaluate(table, in)
	if err != nil {
		return proposal.Compliance{}, err
	}

	res := proposal.Compliance{Issues: []string{}, Warnings: []string{}}
	for _, f := range findings {
		if f.Issue {
			res.Issues = append(res.Issues, f.Message)
		} else {
			res.Warnings = append(res.Warnings, f.Message)
		}
	}
	res.Passed = len(res.Issues) == 0
	res.Summary = summarize(res.Issues, res.Warnings)
	return res, nil
}

// Evaluate returns the raw findings in rule order.
func Evaluate(table *policy.Table, in Input) ([]Finding, error) {
	cp, err := table.Category(in.Proposal.Category)
	if err != nil {
		return nil, err
	}
	var findings []Finding
	for _, c := range checks {
		findings = append(findings, c.eval(table, cp, &in)...)
	}
	return findings, nil
}

func issue(kind RuleKind, format string, args ...any) Finding {
	return Finding{Rule: kind, Issue: true, Message: fmt.Sprintf(format, args...)}
}

func warning(kind RuleKind, format string, args ...any) Finding {
	return Finding{Rule: kind, Message: fmt.Sprintf(format, args...)}
}

func checkBudgetCeiling(_ *policy.Table, cp *policy.CategoryPolicy, in *Input) []Finding {
	p := in.Proposal
	if p.Budget <= cp.Ceiling {
		return nil
	}
	return []Finding{issue(RuleBudgetCeiling,
		"Budget %.0f exceeds the policy ceiling of %.0f for %s proposals.", p.Budget, cp.Ceiling, p.Category)}
}

func checkRequiredFields(_ *policy.Table, cp *policy.CategoryPolicy, in *Input) []Finding {
	p := in.Proposal
	var out []Finding
	for _, f := range cp.RequiredFields {
		var missing bool
		switch f {
		case policy.FieldVenue:
			missing = strings.TrimSpace(p.Venue) == ""
		case policy.FieldDate:
			missing = p.Date == nil
		case policy.FieldAttendees:
			missing = p.Attendees <= 0
		case policy.FieldRequirements:
			missing = strings.TrimSpace(p.Requirements) == ""
		}
		if missing {
			out = append(out, issue(RuleRequiredFields,
				"Field %q is required for %s proposals.", f, p.Category))
		}
	}
	return out
}

func checkLeadTime(_ *policy.Table, cp *policy.CategoryPolicy, in *Input) []Finding {
	p := in.Proposal
	if p.Date == nil || cp.MinLeadTime <= 0 {
		return nil
	}
	notice := p.Date.Sub(in.Now)
	if notice >= cp.MinLeadTime {
		return nil
	}
	return []Finding{warning(RuleLeadTime,
		"Event date %s gives %d day(s) of notice; %s proposals need at least %d.",
		p.Date.Format("2006-01-02"), days(notice), p.Category, days(cp.MinLeadTime))}
}

func checkRiskEscalation(_ *policy.Table, _ *policy.CategoryPolicy, in *Input) []Finding {
	if in.Analysis.RiskLevel != policy.SeverityHigh {
		return nil
	}
	return []Finding{warning(RuleRiskEscalation,
		"Risk level is high; explicit senior leadership sign-off is required.")}
}

func checkBannedKeywords(table *policy.Table, _ *policy.CategoryPolicy, in *Input) []Finding {
	text := in.Proposal.Text()
	var out []Finding
	for _, kw := range table.BannedKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			out = append(out, issue(RuleBannedKeywords, "Proposal contains banned keyword %q.", kw))
		}
	}
	return out
}

func checkWarningKeywords(table *policy.Table, _ *policy.CategoryPolicy, in *Input) []Finding {
	text := in.Proposal.Text()
	var out []Finding
	for _, kw := range table.WarningKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			out = append(out, warning(RuleWarningKeywords, "Proposal mentions %q; additional scrutiny may apply.", kw))
		}
	}
	return out
}

func checkScheduleConflict(_ *policy.Table, _ *policy.CategoryPolicy, in *Input) []Finding {
	p := in.Proposal
	if p.Date == nil {
		return nil
	}
	day := p.Date.Format("2006-01-02")
	for _, other := range in.History {
		if other.ID == p.ID || other.Date == nil || !other.Status.IsActive() {
			continue
		}
		if other.SubmittedBy == p.SubmittedBy && other.Date.Format("2006-01-02") == day {
			return []Finding{warning(RuleScheduleConflict,
				"Another event by the same submitter is already scheduled for %s.", day)}
		}
	}
	return nil
}

func checkDepartmentQuota(table *policy.Table, _ *policy.CategoryPolicy, in *Input) []Finding {
	p := in.Proposal
	if table.MaxEventsPerDepartment <= 0 || p.Department == "" {
		return nil
	}
	year := in.Now.Year()
	if p.Date != nil {
		year = p.Date.Year()
	}

	count := 0
	for _, other := range in.History {
		if other.ID == p.ID || other.Department != p.Department || !other.Status.IsActive() {
			continue
		}
		otherYear := other.CreatedAt.Year()
		if other.Date != nil {
			otherYear = other.Date.Year()
		}
		if otherYear == year {
			count++
		}
	}
	if count < table.MaxEventsPerDepartment {
		return nil
	}
	return []Finding{issue(RuleDepartmentQuota,
		"Department %q has reached the maximum of %d events for %d.", p.Department, table.MaxEventsPerDepartment, year)}
}

func days(d time.Duration) int {
	return int(d.Hours() / 24)
}

func summarize(issues, warnings []string) string {
	if len(issues) == 0 && len(warnings) == 0 {
		return "Proposal passed all compliance checks."
	}
	var parts []string
	if len(issues) > 0 {
		parts = append(parts, fmt.Sprintf("%d issue(s): %s", len(issues), strings.Join(issues, "; ")))
	}
	if len(warnings) > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s): %s", len(warnings), strings.Join(warnings, "; ")))
	}
	return strings.Join(parts, " | ")
}
