package procurement

import (
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"
	"time"

	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
)

var fixedNow = func() time.Time { return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC) }

func TestPlanner_ScalesConsumablesWithAttendance(t *testing.T) {
	pl := NewPlanner(nil, WithClock(fixedNow), WithReferenceSource(func() int { return 42 }))
	order := pl.Generate(&proposal.Proposal{
		ID:        "p-1",
		Category:  policy.CategoryWorkshop,
		Budget:    100_000,
		Attendees: 100,
	})

	want := []LineItem{
		{"Projector Rental", 1, 3000, 3000, vendor.CategoryAVEquipment},
		{"Sound System", 1, 5000, 5000, vendor.CategoryAVEquipment},
		{"Refreshments", 2, 8000, 16000, vendor.CategoryCatering},
		{"Printed Materials", 100, 50, 5000, vendor.CategoryPrinting},
	}
	if !reflect.DeepEqual(order.Items, want) {
		t.Errorf("Items = %+v\nwant %+v", order.Items, want)
	}
	if order.TotalAmount != 29000 {
		t.Errorf("TotalAmount = %v, want 29000", order.TotalAmount)
	}
	if order.ERPReference != "PO/2026/00042" {
		t.Errorf("ERPReference = %q", order.ERPReference)
	}
	wantCats := []vendor.Category{vendor.CategoryAVEquipment, vendor.CategoryCatering, vendor.CategoryPrinting}
	if !reflect.DeepEqual(order.VendorCategories, wantCats) {
		t.Errorf("VendorCategories = %v, want %v", order.VendorCategories, wantCats)
	}
	if order.ProposalID != "p-1" || order.ID == "" {
		t.Errorf("order identity = %q/%q", order.ID, order.ProposalID)
	}
}

func TestPlanner_CapsToBudget(t *testing.T) {
	pl := NewPlanner(nil, WithClock(fixedNow))
	order := pl.Generate(&proposal.Proposal{
		Category: policy.CategoryWorkshop,
		Budget:   9250, // half the unscaled template total of 18500
	})

	wantPrices := []float64{1500, 2500, 4000, 25}
	for i, item := range order.Items {
		if item.UnitPrice != wantPrices[i] {
			t.Errorf("%s unit price = %v, want %v", item.Name, item.UnitPrice, wantPrices[i])
		}
	}
	if order.TotalAmount != 9250 {
		t.Errorf("TotalAmount = %v, want 9250", order.TotalAmount)
	}
}

func TestPlanner_SmallAttendanceDoesNotShrink(t *testing.T) {
	order := NewPlanner(nil).Generate(&proposal.Proposal{
		Category:  policy.CategorySeminar,
		Budget:    1_000_000,
		Attendees: 10,
	})
	for _, item := range order.Items {
		if item.Name == "Printed Materials" && item.Quantity != 30 {
			t.Errorf("Printed Materials quantity = %d, want 30", item.Quantity)
		}
	}
}

func TestPlanner_UnknownCategoryFallsBack(t *testing.T) {
	order := NewPlanner(nil).Generate(&proposal.Proposal{Category: "hackathon", Budget: 1_000_000})
	if len(order.Items) != 2 || order.Items[0].Name != "General Supplies" {
		t.Errorf("Items = %+v, want the other template", order.Items)
	}
}

func TestPlanner_ReferenceFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^PO/\d{4}/\d{5}$`)
	pl := NewPlanner(nil)
	for i := 0; i < 20; i++ {
		ref := pl.Generate(&proposal.Proposal{Category: policy.CategoryOther}).ERPReference
		if !pattern.MatchString(ref) {
			t.Fatalf("ERPReference %q does not match PO/{year}/{5 digits}", ref)
		}
	}
}

func TestInferCategory(t *testing.T) {
	tests := map[string]vendor.Category{
		"Catering (Day 1)":            vendor.CategoryCatering,
		"AV Equipment Package":        vendor.CategoryAVEquipment,
		"Photography & Video":         vendor.CategoryAVEquipment,
		"Banners & Flex Boards":       vendor.CategoryPrinting,
		"Conference Kits":             vendor.CategoryPrinting,
		"Server/Networking Equipment": vendor.CategoryITServices,
		"Bus Transport":               vendor.CategoryLogistics,
		"Auditorium Booking":          vendor.CategoryVenue,
		"Honorarium":                  vendor.CategoryOther,
	}
	for name, want := range tests {
		if got := InferCategory(name); got != want {
			t.Errorf("InferCategory(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestLoadTemplates_OverridesNamedCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	data := []byte(`
Workshop:
  - name: Whiteboard Markers
    quantity: 10
    unit_price: 40
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	tmpl, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates() failed: %v", err)
	}
	want := []LineTemplate{{Name: "Whiteboard Markers", Quantity: 10, UnitPrice: 40}}
	if got := tmpl.For(policy.CategoryWorkshop); !reflect.DeepEqual(got, want) {
		t.Errorf("workshop template = %+v, want %+v", got, want)
	}
	if got := tmpl.For(policy.CategorySeminar); !reflect.DeepEqual(got, DefaultTemplates()[policy.CategorySeminar]) {
		t.Errorf("seminar template changed: %+v", got)
	}
}

func TestParseTemplates_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing name":   "seminar:\n  - quantity: 1\n    unit_price: 10\n",
		"zero quantity":  "seminar:\n  - name: Tea\n    quantity: 0\n",
		"negative price": "seminar:\n  - name: Tea\n    quantity: 1\n    unit_price: -5\n",
		"empty other":    "other: []\n",
		"bad yaml":       "seminar: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseTemplates([]byte(doc)); err == nil {
				t.Errorf("ParseTemplates(%q) = nil error", doc)
			}
		})
	}
}
