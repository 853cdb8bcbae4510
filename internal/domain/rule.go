package domain

// RuleConfig defines a screening rule evaluated against an assessment.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression"`

	// Outcome bands for value-to-outcome mapping
	Bands []RuleBand `json:"bands"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleBand maps a value range to an outcome.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	SubRuleRef string   `json:"subRuleRef"` // e.g., ".pass", ".fail", ".review"
	Reason     string   `json:"reason"`
}

// RuleResult is the output of a rule evaluation.
type RuleResult struct {
	RuleID     string  `json:"ruleId"`
	RuleName   string  `json:"ruleName,omitempty"`
	SubRuleRef string  `json:"subRuleRef"` // ".pass", ".review", ".fail", ".err"
	Value      float64 `json:"value"`      // The computed value
	Reason     string  `json:"reason"`
	ProcessMs  int64   `json:"processMs"`
}

// Predefined rule outcomes
const (
	RuleOutcomePass   = ".pass"
	RuleOutcomeFail   = ".fail"
	RuleOutcomeReview = ".review"
	RuleOutcomeError  = ".err"
)

// Flagged reports whether the result needs attention.
func (r RuleResult) Flagged() bool {
	return r.SubRuleRef == RuleOutcomeFail || r.SubRuleRef == RuleOutcomeReview
}
