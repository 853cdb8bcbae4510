package scoring

import (
	"reflect"
	"testing"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// baseline returns the lowest-risk record.
func baseline() domain.HealthParameters {
	return domain.HealthParameters{
		Age:            30,
		Sex:            domain.SexFemale,
		ChestPainType:  domain.ChestPainTypicalAngina,
		RestingBP:      110,
		Cholesterol:    150,
		FastingBS:      domain.FastingBSNormal,
		RestingECG:     domain.RestingECGNormal,
		MaxHR:          180,
		ExerciseAngina: domain.ExerciseAnginaNo,
		Oldpeak:        0,
		STSlope:        domain.STSlopeUp,
	}
}

func TestScore(t *testing.T) {
	t.Run("AllMaximum", func(t *testing.T) {
		p := domain.HealthParameters{
			Age:            65,
			Sex:            domain.SexMale,
			ChestPainType:  domain.ChestPainAsymptomatic,
			RestingBP:      150,
			Cholesterol:    260,
			FastingBS:      domain.FastingBSElevated,
			RestingECG:     domain.RestingECGLVH,
			MaxHR:          100,
			ExerciseAngina: domain.ExerciseAnginaYes,
			Oldpeak:        3,
			STSlope:        domain.STSlopeDown,
		}

		res := Score(p)

		if res.RiskScore != 100 {
			t.Errorf("expected clamped score 100, got %d", res.RiskScore)
		}
		if res.RiskLevel != domain.RiskHigh {
			t.Errorf("expected High, got %s", res.RiskLevel)
		}
		want := []string{
			FactorAgeOver60,
			FactorMale,
			FactorAsymptomaticPain,
			FactorHighBP,
			FactorHighCholesterol,
			FactorFastingBS,
			FactorLVH,
			FactorLowMaxHR,
			FactorExerciseAngina,
			FactorSTDepression,
			FactorDownslopingSegment,
		}
		if !reflect.DeepEqual(res.Factors, want) {
			t.Errorf("factors mismatch\n got: %v\nwant: %v", res.Factors, want)
		}
	})

	t.Run("AllMinimum", func(t *testing.T) {
		res := Score(baseline())

		if res.RiskScore != 0 {
			t.Errorf("expected score 0, got %d", res.RiskScore)
		}
		if res.RiskLevel != domain.RiskLow {
			t.Errorf("expected Low, got %s", res.RiskLevel)
		}
		if res.Factors == nil || len(res.Factors) != 0 {
			t.Errorf("expected empty non-nil factors, got %#v", res.Factors)
		}
	})

	t.Run("BPBoundary", func(t *testing.T) {
		p := baseline()
		p.RestingBP = 140

		res := Score(p)

		if res.RiskScore != 10 {
			t.Errorf("expected 10 points, got %d", res.RiskScore)
		}
		if !reflect.DeepEqual(res.Factors, []string{FactorElevatedBP}) {
			t.Errorf("expected elevated BP factor, got %v", res.Factors)
		}
	})

	t.Run("OldpeakBoundary", func(t *testing.T) {
		p := baseline()
		p.Oldpeak = 1.0

		res := Score(p)

		if res.RiskScore != 5 {
			t.Errorf("expected 5 points, got %d", res.RiskScore)
		}
		if len(res.Factors) != 0 {
			t.Errorf("expected no factors, got %v", res.Factors)
		}
	})

	t.Run("NonFactorTiers", func(t *testing.T) {
		p := baseline()
		p.Age = 45
		p.ChestPainType = domain.ChestPainNonAnginal
		p.RestingECG = domain.RestingECGST
		p.MaxHR = 130
		p.Oldpeak = 1.5

		res := Score(p)

		// 10 + 5 + 5 + 5 + 10
		if res.RiskScore != 35 {
			t.Errorf("expected 35, got %d", res.RiskScore)
		}
		if res.RiskLevel != domain.RiskModerate {
			t.Errorf("expected Moderate, got %s", res.RiskLevel)
		}
		if len(res.Factors) != 0 {
			t.Errorf("expected no factors, got %v", res.Factors)
		}
	})

	t.Run("UnknownEnumsScoreZero", func(t *testing.T) {
		p := baseline()
		p.Sex = "X"
		p.ChestPainType = "OTHER"
		p.RestingECG = "weird"
		p.STSlope = "Sideways"
		p.FastingBS = "yes"

		res := Score(p)

		if res.RiskScore != 0 {
			t.Errorf("expected unknown values to add nothing, got %d", res.RiskScore)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		p := baseline()
		p.Age = 55
		p.Cholesterol = 220

		a, b := Score(p), Score(p)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("expected identical results, got %+v and %+v", a, b)
		}
	})

	t.Run("MonotonicAge", func(t *testing.T) {
		prev := -1
		for _, age := range []int{30, 45, 55, 65} {
			p := baseline()
			p.Age = age
			got := Score(p).RiskScore
			if got < prev {
				t.Errorf("score decreased at age %d: %d < %d", age, got, prev)
			}
			prev = got
		}
	})
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		score int
		want  domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{29, domain.RiskLow},
		{30, domain.RiskModerate},
		{59, domain.RiskModerate},
		{60, domain.RiskHigh},
		{100, domain.RiskHigh},
	}

	for _, tc := range cases {
		if got := LevelFor(tc.score); got != tc.want {
			t.Errorf("LevelFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	sexes := []domain.Sex{domain.SexMale, domain.SexFemale}
	pains := []domain.ChestPainType{"TA", "ATA", "NAP", "ASY"}
	slopes := []domain.STSlope{"Up", "Flat", "Down"}

	for _, age := range []int{1, 41, 51, 61, 120} {
		for _, sex := range sexes {
			for _, pain := range pains {
				for _, slope := range slopes {
					for _, bp := range []int{50, 135, 300} {
						p := domain.HealthParameters{
							Age: age, Sex: sex, ChestPainType: pain, STSlope: slope,
							RestingBP: bp, Cholesterol: 300, FastingBS: "1",
							RestingECG: "LVH", MaxHR: 60, ExerciseAngina: "Y", Oldpeak: 10,
						}
						res := Score(p)
						if res.RiskScore < 0 || res.RiskScore > 100 {
							t.Fatalf("score out of bounds: %d for %+v", res.RiskScore, p)
						}
						if res.RiskLevel != LevelFor(res.RiskScore) {
							t.Fatalf("level %s inconsistent with score %d", res.RiskLevel, res.RiskScore)
						}
					}
				}
			}
		}
	}
}

func TestScoreLifestyle(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		res := ScoreLifestyle(LifestyleParameters{})
		if res.RiskPercentage != 0 || res.RiskLevel != LifestyleLow {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("Medium", func(t *testing.T) {
		res := ScoreLifestyle(LifestyleParameters{
			Age:       55,
			Smoking:   "former",
			Exercise:  "none",
			FastingBS: 110,
		})
		// 15 + 10 + 15 + 10
		if res.RiskPercentage != 50 {
			t.Errorf("expected 50, got %d", res.RiskPercentage)
		}
		if res.RiskLevel != LifestyleMedium {
			t.Errorf("expected Medium, got %s", res.RiskLevel)
		}
	})

	t.Run("Clamped", func(t *testing.T) {
		res := ScoreLifestyle(LifestyleParameters{
			Age:            70,
			RestingBP:      150,
			Cholesterol:    250,
			FastingBS:      130,
			Smoking:        "current",
			Exercise:       "none",
			ExerciseAngina: true,
		})
		if res.RiskPercentage != 100 {
			t.Errorf("expected 100, got %d", res.RiskPercentage)
		}
		if res.RiskLevel != LifestyleHigh {
			t.Errorf("expected High, got %s", res.RiskLevel)
		}
	})

	t.Run("BandBoundaries", func(t *testing.T) {
		if lifestyleLevel(70) != LifestyleHigh {
			t.Error("70 should be High")
		}
		if lifestyleLevel(69) != LifestyleMedium {
			t.Error("69 should be Medium")
		}
		if lifestyleLevel(40) != LifestyleMedium {
			t.Error("40 should be Medium")
		}
		if lifestyleLevel(39) != LifestyleLow {
			t.Error("39 should be Low")
		}
	})
}
