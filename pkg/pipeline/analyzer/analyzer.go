// Package analyzer derives intent, budget category and an itemized risk
// assessment from a submitted proposal. Analysis is deterministic: the same
// proposal and policy table always produce the same bundle.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

const maxItems = 10

var intents = []struct {
	category policy.Category
	label    string
}{
	{policy.CategoryWorkshop, "Workshop / Training"},
	{policy.CategorySeminar, "Academic Seminar"},
	{policy.CategoryConference, "Conference"},
	{policy.CategoryGuestLecture, "Guest Lecture"},
	{policy.CategoryCulturalFest, "Cultural Festival"},
	{policy.CategoryTechnicalFest, "Technical Festival"},
	{policy.CategorySportsEvent, "Sports Event"},
}

const defaultIntent = "Institutional Event"

var itemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\s*(chairs?|tables?|projectors?|microphones?|banners?|tents?|laptops?|cameras?)`),
	regexp.MustCompile(`(catering|food|snacks?|lunch|dinner|breakfast)\s+for\s+\d+`),
	regexp.MustCompile(`(printing|brochures?|certificates?|badges?)`),
	regexp.MustCompile(`(av\s+equipment|sound\s+system|lighting)`),
	regexp.MustCompile(`(transport|logistics|vehicles?)`),
}

// Analyze runs every risk rule against p and returns the analysis bundle.
// Routing fields are left empty for the router to fill. The only error is a
// *policy.ConfigError when p's category is missing from table.
func Analyze(table *policy.Table, p *proposal.Proposal) (proposal.Analysis, error) {
	cp, err := table.Category(p.Category)
	if err != nil {
		return proposal.Analysis{}, err
	}

	bucket, over := cp.BucketFor(p.Budget)
	ev := &evaluation{
		table:    table,
		category: cp,
		proposal: p,
		text:     p.Text(),
		ratio:    p.Budget / cp.Ceiling,
	}

	var factors []proposal.RiskFactor
	for _, r := range rules {
		factors = append(factors, r.check(ev)...)
	}

	level := policy.SeverityLow
	score := 0.0
	for _, f := range factors {
		level = policy.MaxSeverity(level, f.Severity)
		score += table.Weight(f.Severity)
	}

	a := proposal.Analysis{
		Intent:         intent(p),
		BudgetCategory: bucket.Name,
		OverCeiling:    over,
		BudgetRatio:    ev.ratio,
		RiskLevel:      level,
		RiskScore:      score,
		RiskFactors:    factors,
		Items:          extractItems(ev.text),
	}
	a.Summary = summarize(p, &a, cp.Ceiling)
	return a, nil
}

func intent(p *proposal.Proposal) string {
	for _, in := range intents {
		if p.Category == in.category {
			return in.label
		}
	}

	title := strings.ToLower(p.Title)
	desc := strings.ToLower(p.Description)
	if len(desc) > 100 {
		desc = desc[:100]
	}
	for _, in := range intents {
		kw := strings.ReplaceAll(string(in.category), "_", " ")
		if strings.Contains(title, kw) || strings.Contains(desc, kw) {
			return in.label
		}
	}
	return defaultIntent
}

func extractItems(text string) []string {
	var items []string
	seen := make(map[string]bool)
	for _, re := range itemPatterns {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			items = append(items, m)
			if len(items) == maxItems {
				return items
			}
		}
	}
	return items
}

func summarize(p *proposal.Proposal, a *proposal.Analysis, ceiling float64) string {
	items := "none"
	if len(a.Items) > 0 {
		items = strings.Join(a.Items, ", ")
	}
	budget := fmt.Sprintf("%.0f of %.0f ceiling", p.Budget, ceiling)
	if a.OverCeiling {
		budget += ", over ceiling"
	}
	return fmt.Sprintf("Event: %s. Budget category: %s (%s). Risk: %s (%d factor(s)). Items identified: %s.",
		a.Intent, a.BudgetCategory, budget, a.RiskLevel, len(a.RiskFactors), items)
}
