package analyzer

import (
	"fmt"
	"strings"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

// Rule names recorded on each risk factor.
const (
	RuleOverBudget       = "over_budget"
	RuleNearLimit        = "near_limit"
	RuleMissingLogistics = "missing_logistics"
	RuleCrowdSize        = "crowd_size"
	RuleVagueDescription = "vague_description"
	RuleKeyword          = "keyword"
)

// mitigations is the fixed advice attached to each built-in rule.
var mitigations = map[string]string{
	RuleOverBudget:       "Reduce scope or split the proposal, or attach a justification for a special dispensation from senior leadership.",
	RuleNearLimit:        "Obtain at least two competitive vendor quotations and keep an itemised budget with receipts for audit.",
	RuleMissingLogistics: "Confirm the venue booking and event date before approvers review the proposal.",
	RuleCrowdSize:        "Confirm venue capacity, plan crowd management with campus security and arrange first-aid cover.",
	RuleVagueDescription: "Expand the description with objectives, audience, schedule and expected outcomes.",
}

// evaluation is the shared input of one analysis run.
type evaluation struct {
	table    *policy.Table
	category *policy.CategoryPolicy
	proposal *proposal.Proposal
	text     string
	ratio    float64
}

// rule is one independent risk check. Rules never see each other's output;
// adding a rule is an addition to the table below.
type rule struct {
	kind  string
	check func(*evaluation) []proposal.RiskFactor
}

var rules = []rule{
	{kind: "budget_ratio", check: checkBudgetRatio},
	{kind: RuleMissingLogistics, check: checkLogistics},
	{kind: RuleCrowdSize, check: checkCrowd},
	{kind: RuleVagueDescription, check: checkDescription},
	{kind: RuleKeyword, check: checkKeywords},
}

// RuleKinds lists the risk rules in evaluation order.
func RuleKinds() []string {
	kinds := make([]string, len(rules))
	for i, r := range rules {
		kinds[i] = r.kind
	}
	return kinds
}

func factor(ruleName, name string, sev policy.Severity, desc string) proposal.RiskFactor {
	return proposal.RiskFactor{
		Rule:        ruleName,
		Factor:      name,
		Severity:    sev,
		Description: desc,
		Mitigation:  mitigations[ruleName],
	}
}

func checkBudgetRatio(ev *evaluation) []proposal.RiskFactor {
	p := ev.proposal
	switch {
	case ev.ratio > 1.0:
		return []proposal.RiskFactor{factor(RuleOverBudget, "over budget", policy.SeverityHigh,
			fmt.Sprintf("Requested budget %.0f exceeds the %s ceiling of %.0f (%.0f%% of limit).",
				p.Budget, p.Category, ev.category.Ceiling, ev.ratio*100))}
	case ev.ratio > ev.table.NearLimitRatio:
		return []proposal.RiskFactor{factor(RuleNearLimit, "near limit", policy.SeverityMedium,
			fmt.Sprintf("Requested budget %.0f uses %.0f%% of the %s ceiling of %.0f.",
				p.Budget, ev.ratio*100, p.Category, ev.category.Ceiling))}
	}
	return nil
}

func checkLogistics(ev *evaluation) []proposal.RiskFactor {
	var missing []string
	if strings.TrimSpace(ev.proposal.Venue) == "" {
		missing = append(missing, "venue")
	}
	if ev.proposal.Date == nil {
		missing = append(missing, "date")
	}
	if len(missing) == 0 {
		return nil
	}
	return []proposal.RiskFactor{factor(RuleMissingLogistics, "incomplete logistics", policy.SeverityLow,
		fmt.Sprintf("The proposal does not specify: %s.", strings.Join(missing, ", ")))}
}

func checkCrowd(ev *evaluation) []proposal.RiskFactor {
	limit := ev.category.CrowdThreshold
	if limit <= 0 || ev.proposal.Attendees <= limit {
		return nil
	}
	return []proposal.RiskFactor{factor(RuleCrowdSize, "capacity/safety", policy.SeverityMedium,
		fmt.Sprintf("%d expected attendees exceeds the %d-person threshold for %s events.",
			ev.proposal.Attendees, limit, ev.proposal.Category))}
}

func checkDescription(ev *evaluation) []proposal.RiskFactor {
	desc := strings.TrimSpace(ev.proposal.Description)
	words := len(strings.Fields(desc))
	if len(desc) >= ev.table.MinDescriptionLength && words >= ev.table.MinDescriptionWords {
		return nil
	}
	return []proposal.RiskFactor{factor(RuleVagueDescription, "unclear scope", policy.SeverityLow,
		fmt.Sprintf("The description has %d characters and %d words; at least %d characters and %d words are expected.",
			len(desc), words, ev.table.MinDescriptionLength, ev.table.MinDescriptionWords))}
}

func checkKeywords(ev *evaluation) []proposal.RiskFactor {
	var out []proposal.RiskFactor
	for _, kw := range ev.table.RiskKeywords {
		if !strings.Contains(ev.text, strings.ToLower(kw.Keyword)) {
			continue
		}
		desc := kw.Description
		if desc == "" {
			desc = fmt.Sprintf("The proposal mentions %q.", kw.Keyword)
		}
		out = append(out, proposal.RiskFactor{
			Rule:        RuleKeyword,
			Factor:      kw.Factor,
			Severity:    kw.Severity,
			Description: desc,
			Mitigation:  kw.Mitigation,
		})
	}
	return out
}
