package procurement

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/quorum/pkg/policy"
)

// LineTemplate is a default line item for an event category.
type LineTemplate struct {
	Name      string  `yaml:"name" json:"name"`
	Quantity  int     `yaml:"quantity" json:"quantity"`
	UnitPrice float64 `yaml:"unit_price" json:"unit_price"`
}

// Templates maps event categories to their default line items.
type Templates map[policy.Category][]LineTemplate

// DefaultTemplates returns the built-in templates. Categories without an
// entry fall back to policy.CategoryOther.
func DefaultTemplates() Templates {
	return Templates{
		policy.CategoryWorkshop: {
			{"Projector Rental", 1, 3000},
			{"Sound System", 1, 5000},
			{"Refreshments", 1, 8000},
			{"Printed Materials", 50, 50},
		},
		policy.CategorySeminar: {
			{"Projector Rental", 1, 3000},
			{"Refreshments", 1, 5000},
			{"Printed Materials", 30, 50},
		},
		policy.CategoryConference: {
			{"AV Equipment Package", 1, 30000},
			{"Catering (Day 1)", 1, 50000},
			{"Catering (Day 2)", 1, 50000},
			{"Banners & Flex Boards", 5, 2000},
			{"Conference Kits", 100, 300},
			{"Photography & Video", 1, 20000},
		},
		policy.CategoryGuestLecture: {
			{"Projector Rental", 1, 2000},
			{"Refreshments", 1, 3000},
			{"Honorarium", 1, 5000},
		},
		policy.CategoryCulturalFest: {
			{"Stage Setup", 1, 100000},
			{"Sound & Lighting", 1, 80000},
			{"Catering", 1, 150000},
			{"Prizes & Trophies", 1, 50000},
			{"Banners & Decoration", 1, 30000},
			{"Photography", 1, 25000},
		},
		policy.CategoryTechnicalFest: {
			{"Server/Networking Equipment", 1, 50000},
			{"AV Equipment", 1, 40000},
			{"Catering", 1, 80000},
			{"Prizes & Trophies", 1, 30000},
			{"Printed Materials", 200, 100},
		},
		policy.CategorySportsEvent: {
			{"Sports Equipment", 1, 20000},
			{"Refreshments", 1, 15000},
			{"Medals & Trophies", 1, 10000},
			{"First Aid Kit", 2, 2000},
		},
		policy.CategoryOther: {
			{"General Supplies", 1, 10000},
			{"Contingency", 1, 5000},
		},
	}
}

// For returns the template for category, falling back to "other".
func (t Templates) For(category policy.Category) []LineTemplate {
	if lines, ok := t[category]; ok && len(lines) > 0 {
		return lines
	}
	return t[policy.CategoryOther]
}

// LoadTemplates reads per-category line templates from a YAML file keyed by
// event category:
//
//	workshop:
//	  - name: Projector Rental
//	    quantity: 1
//	    unit_price: 3000
//
// Categories missing from the file keep their built-in template.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read procurement templates: %w", err)
	}
	return ParseTemplates(data)
}

// ParseTemplates parses template YAML over DefaultTemplates. See
// LoadTemplates.
func ParseTemplates(data []byte) (Templates, error) {
	var parsed map[string][]LineTemplate
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse procurement templates: %w", err)
	}

	t := DefaultTemplates()
	var problems []string
	for name, lines := range parsed {
		category := policy.Category(strings.ToLower(strings.TrimSpace(name)))
		for i, l := range lines {
			if strings.TrimSpace(l.Name) == "" {
				problems = append(problems, fmt.Sprintf("%s[%d]: name is required", category, i))
			}
			if l.Quantity < 1 {
				problems = append(problems, fmt.Sprintf("%s[%d]: quantity must be at least 1", category, i))
			}
			if l.UnitPrice < 0 {
				problems = append(problems, fmt.Sprintf("%s[%d]: unit_price must not be negative", category, i))
			}
		}
		t[category] = lines
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid procurement templates: %s", strings.Join(problems, "; "))
	}
	if len(t[policy.CategoryOther]) == 0 {
		return nil, fmt.Errorf("invalid procurement templates: %q must not be empty", policy.CategoryOther)
	}
	return t, nil
}
