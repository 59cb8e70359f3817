package policy

import "time"

const day = 24 * time.Hour

// Default returns the built-in institutional policy table. Each call returns a
// fresh value that the caller owns.
func Default() *Table {
	t := &Table{
		Categories: map[Category]*CategoryPolicy{
			CategoryWorkshop: {
				Ceiling:            100_000,
				MidThreshold:       50_000,
				HighThreshold:      75_000,
				BaseApprovers:      []Role{RoleDepartment},
				CrowdThreshold:     200,
				MinLeadTime:        14 * day,
				RequiredFields:     []Field{FieldVenue, FieldDate},
				RequiresPurchasing: true,
			},
			CategorySeminar: {
				Ceiling:            50_000,
				MidThreshold:       25_000,
				HighThreshold:      40_000,
				BaseApprovers:      []Role{RoleDepartment},
				CrowdThreshold:     200,
				MinLeadTime:        14 * day,
				RequiredFields:     []Field{FieldVenue, FieldDate},
				RequiresPurchasing: true,
			},
			CategoryConference: {
				Ceiling:            500_000,
				MidThreshold:       50_000,
				HighThreshold:      200_000,
				BaseApprovers:      []Role{RoleDepartment, RoleSeniorLeadership},
				CrowdThreshold:     300,
				MinLeadTime:        30 * day,
				RequiredFields:     []Field{FieldVenue, FieldDate, FieldAttendees},
				RequiresPurchasing: true,
			},
			CategoryGuestLecture: {
				Ceiling:        30_000,
				MidThreshold:   15_000,
				HighThreshold:  25_000,
				BaseApprovers:  []Role{RoleDepartment},
				CrowdThreshold: 200,
				MinLeadTime:    7 * day,
				RequiredFields: []Field{FieldDate},
			},
			CategoryCulturalFest: {
				Ceiling:            1_000_000,
				MidThreshold:       50_000,
				HighThreshold:      200_000,
				BaseApprovers:      []Role{RoleDepartment, RoleSeniorLeadership},
				CrowdThreshold:     500,
				MinLeadTime:        30 * day,
				RequiredFields:     []Field{FieldVenue, FieldDate, FieldAttendees},
				RequiresPurchasing: true,
			},
			CategoryTechnicalFest: {
				Ceiling:            800_000,
				MidThreshold:       50_000,
				HighThreshold:      200_000,
				BaseApprovers:      []Role{RoleDepartment, RoleSeniorLeadership},
				CrowdThreshold:     500,
				MinLeadTime:        30 * day,
				RequiredFields:     []Field{FieldVenue, FieldDate, FieldAttendees},
				RequiresPurchasing: true,
			},
			CategorySportsEvent: {
				Ceiling:            300_000,
				MidThreshold:       50_000,
				HighThreshold:      200_000,
				BaseApprovers:      []Role{RoleDepartment},
				CrowdThreshold:     500,
				MinLeadTime:        21 * day,
				RequiredFields:     []Field{FieldVenue, FieldDate},
				RequiresPurchasing: true,
			},
			CategoryOther: {
				Ceiling:            200_000,
				MidThreshold:       50_000,
				HighThreshold:      150_000,
				BaseApprovers:      []Role{RoleDepartment},
				CrowdThreshold:     200,
				MinLeadTime:        14 * day,
				RequiresPurchasing: true,
			},
		},
		RiskWeights: map[Severity]float64{
			SeverityLow:    1,
			SeverityMedium: 3,
			SeverityHigh:   5,
		},
		NearLimitRatio:       0.75,
		MinDescriptionLength: 40,
		MinDescriptionWords:  8,
		RiskKeywords:         defaultRiskKeywords(),
		BannedKeywords:       []string{"political", "election", "alcohol", "gambling", "protest"},
		WarningKeywords: []string{
			"external venue", "overnight stay", "foreign national", "media coverage",
		},
		MaxEventsPerDepartment: 8,
		Approvers: map[Role]string{
			RoleDepartment:       "hod",
			RoleSeniorLeadership: "principal",
			RoleFinance:          "bursar",
			RoleAdminOverride:    "admin",
		},
	}
	t.finalize()
	return t
}

func defaultRiskKeywords() []KeywordRule {
	return []KeywordRule{
		{
			Keyword:     "international",
			Factor:      "International Involvement",
			Severity:    SeverityHigh,
			Description: "International participants or content require coordination with the international relations office.",
			Mitigation:  "Notify the international relations office at least four weeks ahead and obtain invitation letters early.",
		},
		{
			Keyword:     "external sponsor",
			Factor:      "External Sponsorship",
			Severity:    SeverityHigh,
			Description: "Sponsorship introduces financial, legal and brand-alignment exposure.",
			Mitigation:  "Draft a sponsorship agreement reviewed by the administration office and disclose every contribution.",
		},
		{
			Keyword:     "off-campus",
			Factor:      "Off-Campus Venue",
			Severity:    SeverityHigh,
			Description: "Off-campus events need travel, insurance and liability coverage outside institutional premises.",
			Mitigation:  "Book the venue under a written agreement and arrange institutional transport and accident insurance.",
		},
		{
			Keyword:     "overnight",
			Factor:      "Overnight Stay",
			Severity:    SeverityHigh,
			Description: "Overnight stays raise duty-of-care, accommodation and insurance obligations.",
			Mitigation:  "Collect signed consent forms and assign staff supervisors for the accommodation.",
		},
		{
			Keyword:     "foreign national",
			Factor:      "Foreign National Participation",
			Severity:    SeverityHigh,
			Description: "Foreign nationals trigger immigration and reporting requirements.",
			Mitigation:  "Collect passport and visa copies in advance and coordinate with the compliance officer.",
		},
		{
			Keyword:     "media coverage",
			Factor:      "Media Involvement",
			Severity:    SeverityMedium,
			Description: "Media presence requires approved institutional communication.",
			Mitigation:  "Route media communication through the communications office and prepare an approved release.",
		},
	}
}
