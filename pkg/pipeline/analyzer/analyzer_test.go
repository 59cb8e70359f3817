package analyzer

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

const longDescription = "Hands-on workshop on concurrency patterns and testing practice for second-year students."

func newProposal(budget float64) *proposal.Proposal {
	date := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	return &proposal.Proposal{
		ID:          "p-1",
		Title:       "Go Concurrency Workshop",
		Description: longDescription,
		Category:    policy.CategoryWorkshop,
		Budget:      budget,
		Date:        &date,
		Venue:       "Seminar Hall",
		Attendees:   80,
		SubmittedBy: "faculty-1",
		Status:      proposal.StatusSubmitted,
	}
}

func rulesOf(a proposal.Analysis) []string {
	var out []string
	for _, f := range a.RiskFactors {
		out = append(out, f.Rule)
	}
	return out
}

func TestAnalyze_Rules(t *testing.T) {
	table := policy.Default()

	tests := []struct {
		name       string
		mutate     func(*proposal.Proposal)
		wantRules  []string
		wantLevel  policy.Severity
		wantBucket string
	}{
		{
			name:       "clean proposal",
			mutate:     func(*proposal.Proposal) {},
			wantLevel:  policy.SeverityLow,
			wantBucket: "small",
		},
		{
			name:       "near limit",
			mutate:     func(p *proposal.Proposal) { p.Budget = 80_000 },
			wantRules:  []string{RuleNearLimit},
			wantLevel:  policy.SeverityMedium,
			wantBucket: "large",
		},
		{
			name:       "exactly at near limit ratio is not flagged",
			mutate:     func(p *proposal.Proposal) { p.Budget = 75_000 },
			wantLevel:  policy.SeverityLow,
			wantBucket: "medium",
		},
		{
			name:       "over budget",
			mutate:     func(p *proposal.Proposal) { p.Budget = 120_000 },
			wantRules:  []string{RuleOverBudget},
			wantLevel:  policy.SeverityHigh,
			wantBucket: "large",
		},
		{
			name:       "missing venue and date",
			mutate:     func(p *proposal.Proposal) { p.Venue = ""; p.Date = nil },
			wantRules:  []string{RuleMissingLogistics},
			wantLevel:  policy.SeverityLow,
			wantBucket: "small",
		},
		{
			name:       "crowd above threshold",
			mutate:     func(p *proposal.Proposal) { p.Attendees = 250 },
			wantRules:  []string{RuleCrowdSize},
			wantLevel:  policy.SeverityMedium,
			wantBucket: "small",
		},
		{
			name:       "crowd at threshold",
			mutate:     func(p *proposal.Proposal) { p.Attendees = 200 },
			wantLevel:  policy.SeverityLow,
			wantBucket: "small",
		},
		{
			name:       "vague description",
			mutate:     func(p *proposal.Proposal) { p.Description = "Workshop." },
			wantRules:  []string{RuleVagueDescription},
			wantLevel:  policy.SeverityLow,
			wantBucket: "small",
		},
		{
			name:       "risk keyword",
			mutate:     func(p *proposal.Proposal) { p.Requirements = "Two international speakers" },
			wantRules:  []string{RuleKeyword},
			wantLevel:  policy.SeverityHigh,
			wantBucket: "small",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProposal(40_000)
			tt.mutate(p)

			a, err := Analyze(table, p)
			if err != nil {
				t.Fatalf("Analyze() failed: %v", err)
			}
			if got := rulesOf(a); !reflect.DeepEqual(got, tt.wantRules) {
				t.Errorf("rules = %v, want %v", got, tt.wantRules)
			}
			if a.RiskLevel != tt.wantLevel {
				t.Errorf("RiskLevel = %s, want %s", a.RiskLevel, tt.wantLevel)
			}
			if a.BudgetCategory != tt.wantBucket {
				t.Errorf("BudgetCategory = %s, want %s", a.BudgetCategory, tt.wantBucket)
			}
			for _, f := range a.RiskFactors {
				if f.Mitigation == "" {
					t.Errorf("factor %s has no mitigation", f.Rule)
				}
			}
		})
	}
}

func TestAnalyze_FactorsAccumulateIndependently(t *testing.T) {
	p := newProposal(120_000)
	p.Venue = ""
	p.Attendees = 300
	p.Description = "Big event."
	p.Requirements = "media coverage expected"

	a, err := Analyze(policy.Default(), p)
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}

	want := []string{RuleOverBudget, RuleMissingLogistics, RuleCrowdSize, RuleVagueDescription, RuleKeyword}
	if got := rulesOf(a); !reflect.DeepEqual(got, want) {
		t.Fatalf("rules = %v, want %v", got, want)
	}
	if a.RiskLevel != policy.SeverityHigh {
		t.Errorf("RiskLevel = %s, want high", a.RiskLevel)
	}
	// high 5 + low 1 + medium 3 + low 1 + medium 3
	if a.RiskScore != 13 {
		t.Errorf("RiskScore = %v, want 13", a.RiskScore)
	}
	if !a.OverCeiling {
		t.Error("OverCeiling = false, want true")
	}
	if a.BudgetRatio != 1.2 {
		t.Errorf("BudgetRatio = %v, want 1.2", a.BudgetRatio)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	table := policy.Default()
	p := newProposal(90_000)
	p.Requirements = "20 chairs, catering for 100, printing of certificates"

	first, err := Analyze(table, p)
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := Analyze(table, p)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestAnalyze_UnknownCategory(t *testing.T) {
	p := newProposal(1_000)
	p.Category = "hackathon"

	_, err := Analyze(policy.Default(), p)
	if !errors.Is(err, policy.ErrUnknownCategory) {
		t.Fatalf("Analyze() error = %v, want ErrUnknownCategory", err)
	}
}

func TestIntent(t *testing.T) {
	tests := []struct {
		category policy.Category
		title    string
		want     string
	}{
		{policy.CategoryWorkshop, "anything", "Workshop / Training"},
		{policy.CategoryGuestLecture, "anything", "Guest Lecture"},
		{policy.CategoryOther, "Annual Sports Event Day", "Sports Event"},
		{policy.CategoryOther, "Alumni meetup", "Institutional Event"},
	}
	for _, tt := range tests {
		p := &proposal.Proposal{Category: tt.category, Title: tt.title, Description: "details"}
		if got := intent(p); got != tt.want {
			t.Errorf("intent(%s, %q) = %q, want %q", tt.category, tt.title, got, tt.want)
		}
	}
}

func TestExtractItems(t *testing.T) {
	text := strings.ToLower("Need 20 chairs, catering for 100, printing of certificates and 2 projectors")
	got := extractItems(text)
	want := []string{"20 chairs", "2 projectors", "catering for 100", "printing", "certificates"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractItems() = %v, want %v", got, want)
	}
}

func TestAnalyze_Summary(t *testing.T) {
	a, err := Analyze(policy.Default(), newProposal(40_000))
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	for _, want := range []string{"Workshop / Training", "small", "40000 of 100000", "Risk: low"} {
		if !strings.Contains(a.Summary, want) {
			t.Errorf("Summary %q missing %q", a.Summary, want)
		}
	}
}

func TestRuleKinds(t *testing.T) {
	if got := len(RuleKinds()); got != len(rules) {
		t.Errorf("RuleKinds() returned %d kinds, want %d", got, len(rules))
	}
}
