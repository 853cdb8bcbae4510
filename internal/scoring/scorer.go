// Package scoring implements the cardiovascular risk scorer.
package scoring

import "github.com/heartcare-ai/heartcare/internal/domain"

// MaxScore is the upper clamp on a risk score.
const MaxScore = 100

// Level thresholds. A score of exactly ModerateThreshold is Moderate,
// exactly HighThreshold is High.
const (
	ModerateThreshold = 30
	HighThreshold     = 60
)

// Factor texts emitted for the weighted tiers.
const (
	FactorAgeOver60          = "Age over 60"
	FactorAgeOver50          = "Age over 50"
	FactorMale               = "Male sex"
	FactorAsymptomaticPain   = "Asymptomatic chest pain"
	FactorHighBP             = "High blood pressure"
	FactorElevatedBP         = "Elevated blood pressure"
	FactorHighCholesterol    = "High cholesterol"
	FactorBorderlineChol     = "Borderline high cholesterol"
	FactorFastingBS          = "Elevated fasting blood sugar"
	FactorLVH                = "Left ventricular hypertrophy"
	FactorLowMaxHR           = "Low maximum heart rate"
	FactorExerciseAngina     = "Exercise-induced angina"
	FactorSTDepression       = "Significant ST depression"
	FactorFlatSTSlope        = "Flat ST slope"
	FactorDownslopingSegment = "Downsloping ST segment"
)

// Score computes the risk result for p.
// It performs no validation: unknown enum values contribute nothing.
func Score(p domain.HealthParameters) domain.RiskResult {
	t := tally{factors: []string{}}

	switch {
	case p.Age > 60:
		t.add(20, FactorAgeOver60)
	case p.Age > 50:
		t.add(15, FactorAgeOver50)
	case p.Age > 40:
		t.add(10, "")
	}

	if p.Sex == domain.SexMale {
		t.add(10, FactorMale)
	}

	switch p.ChestPainType {
	case domain.ChestPainAsymptomatic:
		t.add(20, FactorAsymptomaticPain)
	case domain.ChestPainAtypicalAngina:
		t.add(10, "")
	case domain.ChestPainNonAnginal:
		t.add(5, "")
	}

	switch {
	case p.RestingBP > 140:
		t.add(15, FactorHighBP)
	case p.RestingBP > 130:
		t.add(10, FactorElevatedBP)
	}

	switch {
	case p.Cholesterol > 240:
		t.add(15, FactorHighCholesterol)
	case p.Cholesterol > 200:
		t.add(10, FactorBorderlineChol)
	}

	if p.FastingBS == domain.FastingBSElevated {
		t.add(10, FactorFastingBS)
	}

	switch p.RestingECG {
	case domain.RestingECGLVH:
		t.add(10, FactorLVH)
	case domain.RestingECGST:
		t.add(5, "")
	}

	switch {
	case p.MaxHR < 120:
		t.add(10, FactorLowMaxHR)
	case p.MaxHR < 140:
		t.add(5, "")
	}

	if p.ExerciseAngina == domain.ExerciseAnginaYes {
		t.add(15, FactorExerciseAngina)
	}

	switch {
	case p.Oldpeak > 2:
		t.add(15, FactorSTDepression)
	case p.Oldpeak > 1:
		t.add(10, "")
	case p.Oldpeak > 0:
		t.add(5, "")
	}

	switch p.STSlope {
	case domain.STSlopeFlat:
		t.add(15, FactorFlatSTSlope)
	case domain.STSlopeDown:
		t.add(10, FactorDownslopingSegment)
	}

	score := min(t.points, MaxScore)
	return domain.RiskResult{
		RiskScore: score,
		RiskLevel: LevelFor(score),
		Factors:   t.factors,
	}
}

// LevelFor maps a score to its risk level.
func LevelFor(score int) domain.RiskLevel {
	switch {
	case score < ModerateThreshold:
		return domain.RiskLow
	case score < HighThreshold:
		return domain.RiskModerate
	default:
		return domain.RiskHigh
	}
}

type tally struct {
	points  int
	factors []string
}

func (t *tally) add(points int, factor string) {
	t.points += points
	if factor != "" {
		t.factors = append(t.factors, factor)
	}
}
