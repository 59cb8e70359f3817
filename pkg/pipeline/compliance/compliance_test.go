package compliance

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

var now = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func newInput(budget float64) Input {
	date := now.AddDate(0, 2, 0)
	return Input{
		Proposal: &proposal.Proposal{
			ID:          "p-1",
			Title:       "Go Workshop",
			Description: "Hands-on workshop on concurrency patterns for second-year students.",
			Category:    policy.CategoryWorkshop,
			Budget:      budget,
			Date:        &date,
			Venue:       "Seminar Hall",
			Attendees:   60,
			Department:  "cse",
			SubmittedBy: "faculty-1",
		},
		Analysis: proposal.Analysis{RiskLevel: policy.SeverityLow},
		Now:      now,
	}
}

func rulesOf(findings []Finding) []RuleKind {
	var out []RuleKind
	for _, f := range findings {
		out = append(out, f.Rule)
	}
	return out
}

func TestValidate_PassesCleanProposal(t *testing.T) {
	res, err := Validate(policy.Default(), newInput(40_000))
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if !res.Passed {
		t.Errorf("Passed = false, issues: %v", res.Issues)
	}
	if len(res.Issues) != 0 || len(res.Warnings) != 0 {
		t.Errorf("unexpected findings: issues=%v warnings=%v", res.Issues, res.Warnings)
	}
	if res.Summary != "Proposal passed all compliance checks." {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestValidate_OverCeilingFails(t *testing.T) {
	res, err := Validate(policy.Default(), newInput(120_000))
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if res.Passed {
		t.Fatal("Passed = true for budget over ceiling")
	}
	if len(res.Issues) != 1 || !strings.Contains(res.Issues[0], "exceeds the policy ceiling") {
		t.Errorf("Issues = %v", res.Issues)
	}
}

func TestEvaluate_AllRulesRun(t *testing.T) {
	in := newInput(150_000)
	in.Proposal.Venue = ""
	soon := now.Add(48 * time.Hour)
	in.Proposal.Date = &soon
	in.Proposal.Requirements = "alcohol at dinner, media coverage"
	in.Analysis.RiskLevel = policy.SeverityHigh

	findings, err := Evaluate(policy.Default(), in)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}

	want := []RuleKind{
		RuleBudgetCeiling,
		RuleRequiredFields,
		RuleLeadTime,
		RuleRiskEscalation,
		RuleBannedKeywords,
		RuleWarningKeywords,
	}
	if got := rulesOf(findings); !reflect.DeepEqual(got, want) {
		t.Fatalf("rules = %v, want %v", got, want)
	}

	res, _ := Validate(policy.Default(), in)
	if len(res.Issues) != 3 {
		t.Errorf("Issues = %v, want 3 (ceiling, venue, banned keyword)", res.Issues)
	}
	if len(res.Warnings) != 3 {
		t.Errorf("Warnings = %v, want 3 (lead time, risk, media)", res.Warnings)
	}
}

func TestValidate_WarningsNeverFail(t *testing.T) {
	in := newInput(40_000)
	in.Analysis.RiskLevel = policy.SeverityHigh
	soon := now.Add(24 * time.Hour)
	in.Proposal.Date = &soon

	res, err := Validate(policy.Default(), in)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if !res.Passed {
		t.Errorf("Passed = false with only warnings: %v", res.Issues)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2", res.Warnings)
	}
}

func TestCheckRequiredFields(t *testing.T) {
	table := policy.Default()
	in := newInput(100_000)
	in.Proposal.Category = policy.CategoryConference
	in.Proposal.Attendees = 0
	in.Proposal.Date = nil

	findings, err := Evaluate(table, in)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	var msgs []string
	for _, f := range findings {
		if f.Rule == RuleRequiredFields {
			msgs = append(msgs, f.Message)
		}
	}
	if len(msgs) != 2 {
		t.Fatalf("required field issues = %v, want date and attendees", msgs)
	}
	if !strings.Contains(msgs[0], `"date"`) || !strings.Contains(msgs[1], `"attendees"`) {
		t.Errorf("unexpected messages: %v", msgs)
	}
}

func TestCheckScheduleConflict(t *testing.T) {
	in := newInput(10_000)
	sameDay := in.Proposal.Date.Add(3 * time.Hour)
	in.History = []*proposal.Proposal{
		{ID: "p-1", SubmittedBy: "faculty-1", Date: in.Proposal.Date, Status: proposal.StatusInReview},
		{ID: "p-2", SubmittedBy: "faculty-1", Date: &sameDay, Status: proposal.StatusRejected},
	}

	findings, _ := Evaluate(policy.Default(), in)
	for _, f := range findings {
		if f.Rule == RuleScheduleConflict {
			t.Fatalf("conflict reported against itself or a rejected proposal: %s", f.Message)
		}
	}

	in.History = append(in.History, &proposal.Proposal{
		ID: "p-3", SubmittedBy: "faculty-1", Date: &sameDay, Status: proposal.StatusApproved,
	})
	findings, _ = Evaluate(policy.Default(), in)
	if got := rulesOf(findings); !reflect.DeepEqual(got, []RuleKind{RuleScheduleConflict}) {
		t.Errorf("rules = %v, want schedule conflict only", got)
	}
}

func TestCheckDepartmentQuota(t *testing.T) {
	table := policy.Default()
	table.MaxEventsPerDepartment = 2
	in := newInput(10_000)

	lastYear := in.Proposal.Date.AddDate(-1, 0, 0)
	for i := 0; i < 2; i++ {
		in.History = append(in.History, &proposal.Proposal{
			ID: fmt.Sprintf("old-%d", i), Department: "cse", Date: &lastYear, Status: proposal.StatusApproved,
		})
	}
	res, _ := Validate(table, in)
	if !res.Passed {
		t.Fatalf("last year's events counted against quota: %v", res.Issues)
	}

	for i := 0; i < 2; i++ {
		in.History = append(in.History, &proposal.Proposal{
			ID: fmt.Sprintf("cur-%d", i), Department: "cse", Date: in.Proposal.Date, Status: proposal.StatusInReview,
		})
	}
	res, _ = Validate(table, in)
	if res.Passed || len(res.Issues) != 1 || !strings.Contains(res.Issues[0], "maximum of 2 events") {
		t.Errorf("quota not enforced: %+v", res)
	}
}

func TestValidate_UnknownCategory(t *testing.T) {
	in := newInput(10)
	in.Proposal.Category = "hackathon"
	_, err := Validate(policy.Default(), in)
	if !errors.Is(err, policy.ErrUnknownCategory) {
		t.Fatalf("Validate() error = %v, want ErrUnknownCategory", err)
	}
}

func TestValidate_Deterministic(t *testing.T) {
	in := newInput(95_000)
	in.Analysis.RiskLevel = policy.SeverityHigh
	first, _ := Validate(policy.Default(), in)
	second, _ := Validate(policy.Default(), in)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}
