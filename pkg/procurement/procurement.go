// Package procurement turns an approved proposal into a purchase order.
//
// Orders are built from per-category line templates. Consumable lines scale
// with attendance and the whole order is scaled down to fit the approved
// budget. Each order gets an ERP reference of the form PO/{year}/{5 digits}.
package procurement

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
)

// baseAttendance is the headcount templates are sized for.
const baseAttendance = 50

// scaledKeywords mark lines whose quantity grows with attendance.
var scaledKeywords = []string{"catering", "refreshment", "kit", "material"}

// LineItem is one priced order line.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice float64         `json:"unit_price"`
	Total     float64         `json:"total"`
	Category  vendor.Category `json:"category"`
}

// Order is a generated purchase order.
type Order struct {
	ID               string            `json:"id"`
	ProposalID       string            `json:"proposal_id"`
	Items            []LineItem        `json:"items"`
	TotalAmount      float64           `json:"total_amount"`
	ERPReference     string            `json:"erp_reference"`
	VendorCategories []vendor.Category `json:"vendor_categories"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Planner generates orders.
type Planner struct {
	templates Templates
	now       func() time.Time
	refDigits func() int
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithReferenceSource replaces the random ERP sequence source. The returned
// value is reduced modulo 100000.
func WithReferenceSource(next func() int) Option {
	return func(p *Planner) { p.refDigits = next }
}

// NewPlanner creates a planner. A nil templates map uses DefaultTemplates.
func NewPlanner(templates Templates, opts ...Option) *Planner {
	if templates == nil {
		templates = DefaultTemplates()
	}
	p := &Planner{
		templates: templates,
		now:       time.Now,
		refDigits: func() int { return rand.IntN(100000) },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate builds an order for p. It does not check p's status; the caller
// decides when an order is due.
func (pl *Planner) Generate(p *proposal.Proposal) *Order {
	now := pl.now().UTC()

	attendees := p.Attendees
	if attendees <= 0 {
		attendees = baseAttendance
	}
	scale := math.Max(1, float64(attendees)/baseAttendance)

	order := &Order{
		ID:         uuid.New().String(),
		ProposalID: p.ID,
		CreatedAt:  now,
	}

	seen := make(map[vendor.Category]bool)
	total := 0.0
	for _, t := range pl.templates.For(p.Category) {
		qty := t.Quantity
		if isScaled(t.Name) {
			qty = max(1, int(math.Round(float64(t.Quantity)*scale)))
		}
		line := LineItem{
			Name:      t.Name,
			Quantity:  qty,
			UnitPrice: t.UnitPrice,
			Total:     float64(qty) * t.UnitPrice,
			Category:  InferCategory(t.Name),
		}
		total += line.Total
		order.Items = append(order.Items, line)

		if !seen[line.Category] {
			seen[line.Category] = true
			order.VendorCategories = append(order.VendorCategories, line.Category)
		}
	}

	if p.Budget > 0 && total > p.Budget {
		factor := p.Budget / total
		total = 0
		for i := range order.Items {
			item := &order.Items[i]
			item.UnitPrice = round2(item.UnitPrice * factor)
			item.Total = round2(float64(item.Quantity) * item.UnitPrice)
			total += item.Total
		}
	}
	order.TotalAmount = round2(total)

	sort.Slice(order.VendorCategories, func(i, j int) bool {
		return order.VendorCategories[i] < order.VendorCategories[j]
	})

	order.ERPReference = fmt.Sprintf("PO/%d/%05d", now.Year(), abs(pl.refDigits())%100000)
	return order
}

// InferCategory maps an item name to the vendor category that supplies it.
func InferCategory(itemName string) vendor.Category {
	name := strings.ToLower(itemName)
	switch {
	case containsAny(name, "catering", "refreshment", "food", "lunch", "dinner", "breakfast"):
		return vendor.CategoryCatering
	case containsAny(name, "projector", "av ", "av equipment", "sound", "lighting", "microphone", "video", "photo"):
		return vendor.CategoryAVEquipment
	case containsAny(name, "print", "banner", "brochure", "flex", "material", "kit"):
		return vendor.CategoryPrinting
	case containsAny(name, "transport", "vehicle", "logistics"):
		return vendor.CategoryLogistics
	case containsAny(name, "server", "network", "laptop", "computer"):
		return vendor.CategoryITServices
	case containsAny(name, "venue", "hall", "auditorium"):
		return vendor.CategoryVenue
	default:
		return vendor.CategoryOther
	}
}

func isScaled(name string) bool {
	return containsAny(strings.ToLower(name), scaledKeywords...)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
