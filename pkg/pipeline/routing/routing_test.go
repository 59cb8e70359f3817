package routing

import (
	"reflect"
	"strings"
	"testing"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
)

const (
	dept    = policy.RoleDepartment
	senior  = policy.RoleSeniorLeadership
	finance = policy.RoleFinance
	admin   = policy.RoleAdminOverride
)

func TestCompute(t *testing.T) {
	table := policy.Default()

	tests := []struct {
		name     string
		category policy.Category
		budget   float64
		risk     policy.Severity
		issues   []string
		want     []policy.Role
	}{
		{
			name:     "below mid threshold",
			category: policy.CategoryWorkshop,
			budget:   40_000,
			risk:     policy.SeverityLow,
			want:     []policy.Role{dept},
		},
		{
			name:     "above mid threshold",
			category: policy.CategoryWorkshop,
			budget:   60_000,
			risk:     policy.SeverityLow,
			want:     []policy.Role{dept, senior},
		},
		{
			name:     "above high threshold",
			category: policy.CategoryWorkshop,
			budget:   90_000,
			risk:     policy.SeverityMedium,
			want:     []policy.Role{dept, senior, finance},
		},
		{
			name:     "over ceiling with issue",
			category: policy.CategoryWorkshop,
			budget:   120_000,
			risk:     policy.SeverityHigh,
			issues:   []string{"over ceiling"},
			want:     []policy.Role{dept, senior, finance, admin},
		},
		{
			name:     "high risk with small budget",
			category: policy.CategoryWorkshop,
			budget:   10_000,
			risk:     policy.SeverityHigh,
			want:     []policy.Role{dept, senior},
		},
		{
			name:     "issue with small budget",
			category: policy.CategoryWorkshop,
			budget:   10_000,
			risk:     policy.SeverityLow,
			issues:   []string{"missing venue"},
			want:     []policy.Role{dept, senior, admin},
		},
		{
			name:     "base set already has senior leadership",
			category: policy.CategoryConference,
			budget:   250_000,
			risk:     policy.SeverityHigh,
			want:     []policy.Role{dept, senior, finance},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &proposal.Proposal{Title: "t", Category: tt.category, Budget: tt.budget}
			a := proposal.Analysis{RiskLevel: tt.risk}
			c := proposal.Compliance{Issues: tt.issues, Passed: len(tt.issues) == 0}

			r, err := Compute(table, p, a, c)
			if err != nil {
				t.Fatalf("Compute() failed: %v", err)
			}
			if !reflect.DeepEqual(r.Path, tt.want) {
				t.Errorf("Path = %v, want %v", r.Path, tt.want)
			}
		})
	}
}

func TestCompute_SeniorInsertedBeforeBudgetRoles(t *testing.T) {
	table := policy.Default()
	cp := table.Categories[policy.CategoryWorkshop]
	// With finance in the base set, escalation must still land directly
	// after department.
	cp.BaseApprovers = []policy.Role{dept, finance}

	p := &proposal.Proposal{Category: policy.CategoryWorkshop, Budget: 10_000}
	r, err := Compute(table, p, proposal.Analysis{RiskLevel: policy.SeverityHigh}, proposal.Compliance{})
	if err != nil {
		t.Fatalf("Compute() failed: %v", err)
	}
	want := []policy.Role{dept, senior, finance}
	if !reflect.DeepEqual(r.Path, want) {
		t.Errorf("Path = %v, want %v", r.Path, want)
	}
}

func TestCompute_AdminOverrideAlwaysLast(t *testing.T) {
	table := policy.Default()
	table.Categories[policy.CategoryWorkshop].BaseApprovers = []policy.Role{dept, admin}

	p := &proposal.Proposal{Category: policy.CategoryWorkshop, Budget: 90_000}
	r, err := Compute(table, p, proposal.Analysis{RiskLevel: policy.SeverityLow}, proposal.Compliance{Issues: []string{"x"}})
	if err != nil {
		t.Fatalf("Compute() failed: %v", err)
	}
	if last := r.Path[len(r.Path)-1]; last != admin {
		t.Errorf("last role = %s, want %s (path %v)", last, admin, r.Path)
	}
	assertDistinct(t, r.Path)
}

func TestCompute_PropertiesOverGrid(t *testing.T) {
	table := policy.Default()
	severities := []policy.Severity{policy.SeverityLow, policy.SeverityMedium, policy.SeverityHigh}

	for _, cat := range table.CategoryNames() {
		for _, budget := range []float64{0, 10_000, 50_000, 75_001, 150_000, 2_000_000} {
			for _, sev := range severities {
				for _, issues := range [][]string{nil, {"issue"}} {
					p := &proposal.Proposal{Category: cat, Budget: budget}
					a := proposal.Analysis{RiskLevel: sev}
					c := proposal.Compliance{Issues: issues}

					first, err := Compute(table, p, a, c)
					if err != nil {
						t.Fatalf("Compute() failed: %v", err)
					}
					second, _ := Compute(table, p, a, c)

					if len(first.Path) == 0 {
						t.Fatalf("empty path for %s/%v/%s", cat, budget, sev)
					}
					if first.Path[0] != dept {
						t.Errorf("path %v does not start with department", first.Path)
					}
					if !reflect.DeepEqual(first.Path, second.Path) {
						t.Errorf("non-deterministic path: %v vs %v", first.Path, second.Path)
					}
					assertDistinct(t, first.Path)
				}
			}
		}
	}
}

func TestApply_RecordsExplanation(t *testing.T) {
	p := &proposal.Proposal{Title: "Tech Fest", Category: policy.CategoryTechnicalFest, Budget: 300_000, Attendees: 900}
	a, err := Apply(policy.Default(), p, proposal.Analysis{RiskLevel: policy.SeverityMedium, BudgetCategory: "large"}, proposal.Compliance{})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if !reflect.DeepEqual(a.RoutingPath, []policy.Role{dept, senior, finance}) {
		t.Errorf("RoutingPath = %v", a.RoutingPath)
	}
	for _, want := range []string{`"Tech Fest"`, "Step 1: department", "Step 3: finance (budget above 200000)"} {
		if !strings.Contains(a.RoutingExplanation, want) {
			t.Errorf("explanation missing %q:\n%s", want, a.RoutingExplanation)
		}
	}
}

func assertDistinct(t *testing.T, path []policy.Role) {
	t.Helper()
	seen := make(map[policy.Role]bool)
	for _, r := range path {
		if seen[r] {
			t.Errorf("role %s repeated in %v", r, path)
		}
		seen[r] = true
	}
}
