package rules

import "github.com/heartcare-ai/heartcare/internal/domain"

func limit(v float64) *float64 { return &v }

// DefaultScreeningRules returns the rule set seeded into an empty database.
// Operators can edit or disable any of them through the rules API.
func DefaultScreeningRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "bp-crisis",
			Name:        "Hypertensive Range",
			Description: "Resting blood pressure in the hypertensive crisis range",
			Version:     "1.0.0",
			Expression:  "resting_bp >= 180 ? 1.0 : (resting_bp >= 160 ? 0.5 : 0.0)",
			Bands: []domain.RuleBand{
				{LowerLimit: limit(0), UpperLimit: limit(0.5), SubRuleRef: domain.RuleOutcomePass, Reason: "Blood pressure below crisis range"},
				{LowerLimit: limit(0.5), UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomeReview, Reason: "Stage 2 hypertension, recheck soon"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeFail, Reason: "Blood pressure at crisis level, seek care promptly"},
			},
			Enabled: true,
		},
		{
			ID:          "exertional-ischemia",
			Name:        "Exertional Ischemia Pattern",
			Description: "Exercise angina together with marked ST depression",
			Version:     "1.0.0",
			Expression:  `exercise_angina == "Y" && oldpeak >= 2.0`,
			Bands: []domain.RuleBand{
				{LowerLimit: limit(0), UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "No exertional ischemia pattern"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeFail, Reason: "Angina with ST depression on exertion, cardiology referral advised"},
			},
			Enabled: true,
		},
		{
			ID:          "severe-cholesterol",
			Name:        "Severe Hypercholesterolemia",
			Description: "Total cholesterol high enough to suggest a familial disorder",
			Version:     "1.0.0",
			Expression:  "cholesterol >= 300",
			Bands: []domain.RuleBand{
				{LowerLimit: limit(0), UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "Cholesterol below severe range"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeReview, Reason: "Cholesterol of 300 mg/dl or more, lipid panel advised"},
			},
			Enabled: true,
		},
		{
			ID:          "young-high-risk",
			Name:        "High Risk Under 45",
			Description: "High risk category at a young age",
			Version:     "1.0.0",
			Expression:  `age < 45 && risk_level == "High"`,
			Bands: []domain.RuleBand{
				{LowerLimit: limit(0), UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomePass, Reason: "Not applicable"},
				{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeReview, Reason: "High risk before 45, early screening advised"},
			},
			Enabled: true,
		},
		{
			ID:          "frequent-resubmission",
			Name:        "Frequent Resubmission",
			Description: "Many assessments submitted in the last day",
			Version:     "1.0.0",
			Expression:  "recent_assessments",
			Bands: []domain.RuleBand{
				{LowerLimit: limit(0), UpperLimit: limit(10), SubRuleRef: domain.RuleOutcomePass, Reason: "Normal submission rate"},
				{LowerLimit: limit(10), SubRuleRef: domain.RuleOutcomeReview, Reason: "Many recent submissions, results may reflect trial inputs"},
			},
			Enabled: false,
		},
	}
}
