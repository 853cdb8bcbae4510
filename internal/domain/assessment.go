package domain

import (
	"time"
)

// Assessment is one submitted set of health parameters plus its computed result.
type Assessment struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Status is "pending" until the risk scorer has run, then "scored".
	Status string `json:"status"`

	Params HealthParameters `json:"parameters"`

	RiskScore int       `json:"riskScore"`
	RiskLevel RiskLevel `json:"riskLevel,omitempty"`
	Factors   []string  `json:"factors"`

	// Recommendations is the markdown advice generated for the result.
	Recommendations string `json:"recommendations"`

	// Screenings holds the outcome of operator-configured screening rules.
	Screenings []RuleResult `json:"screenings,omitempty"`

	CreatedAt time.Time          `json:"createdAt"`
	Metadata  AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID        string `json:"traceId"`
	ScoreMs        int64  `json:"scoreMs"`
	RulesMs        int64  `json:"rulesMs"`
	TotalMs        int64  `json:"totalMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}

// Assessment status constants
const (
	StatusPending = "pending"
	StatusScored  = "scored"
)

// Result returns the scorer output stored on the assessment.
func (a *Assessment) Result() RiskResult {
	return RiskResult{
		RiskScore: a.RiskScore,
		RiskLevel: a.RiskLevel,
		Factors:   a.Factors,
	}
}

// ApplyResult copies a scorer output onto the assessment.
func (a *Assessment) ApplyResult(r RiskResult) {
	a.RiskScore = r.RiskScore
	a.RiskLevel = r.RiskLevel
	a.Factors = r.Factors
	a.Status = StatusScored
}

// AssessmentFilter narrows a history listing.
type AssessmentFilter struct {
	Level RiskLevel // empty = all levels
	Limit int       // <= 0 = no limit
}

// Trend compares the two most recent assessments.
type Trend string

const (
	TrendImproving  Trend = "improving"
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendUnknown    Trend = "unknown"
)

// AssessmentSummary is the aggregate view shown on the history page.
type AssessmentSummary struct {
	Total       int            `json:"total"`
	LatestLevel RiskLevel      `json:"latestLevel,omitempty"`
	LatestScore int            `json:"latestScore"`
	Trend       Trend          `json:"trend"`
	ByLevel     map[string]int `json:"byLevel"`
}

// Summarize builds a summary from assessments ordered newest first.
// Pending assessments are ignored.
func Summarize(assessments []*Assessment) AssessmentSummary {
	sum := AssessmentSummary{
		Trend: TrendUnknown,
		ByLevel: map[string]int{
			string(RiskLow):      0,
			string(RiskModerate): 0,
			string(RiskHigh):     0,
		},
	}

	var scored []*Assessment
	for _, a := range assessments {
		if a.Status != StatusScored {
			continue
		}
		scored = append(scored, a)
		sum.ByLevel[string(a.RiskLevel)]++
	}

	sum.Total = len(scored)
	if len(scored) == 0 {
		return sum
	}

	sum.LatestLevel = scored[0].RiskLevel
	sum.LatestScore = scored[0].RiskScore

	if len(scored) > 1 {
		prev := scored[1].RiskScore
		switch {
		case sum.LatestScore < prev:
			sum.Trend = TrendImproving
		case sum.LatestScore > prev:
			sum.Trend = TrendIncreasing
		default:
			sum.Trend = TrendStable
		}
	}

	return sum
}
