package scoring

// LifestyleParameters is the input of the lifestyle questionnaire.
// Zero values mean "not provided" and contribute nothing.
type LifestyleParameters struct {
	Age            int    `json:"age"`
	RestingBP      int    `json:"restingBP"`
	Cholesterol    int    `json:"cholesterol"`
	FastingBS      int    `json:"fastingBS"` // mg/dl, not the 0/1 flag
	Smoking        string `json:"smoking"`   // never, former, current
	Exercise       string `json:"exercise"`  // none, 1-2, 3-4, 5+
	ExerciseAngina bool   `json:"exerciseAngina"`
}

// LifestyleLevel is the display band of a lifestyle score.
type LifestyleLevel string

const (
	LifestyleLow    LifestyleLevel = "Low"
	LifestyleMedium LifestyleLevel = "Medium"
	LifestyleHigh   LifestyleLevel = "High"
)

// LifestyleResult is the output of ScoreLifestyle.
type LifestyleResult struct {
	RiskPercentage int            `json:"riskPercentage"`
	RiskLevel      LifestyleLevel `json:"riskLevel"`
}

// ScoreLifestyle applies the simplified lifestyle table.
// It is an independent strategy and never agrees with Score by construction.
func ScoreLifestyle(p LifestyleParameters) LifestyleResult {
	risk := 0

	switch {
	case p.Age > 65:
		risk += 20
	case p.Age > 50:
		risk += 15
	case p.Age > 40:
		risk += 10
	}

	switch {
	case p.RestingBP > 140:
		risk += 15
	case p.RestingBP > 130:
		risk += 10
	}

	switch {
	case p.Cholesterol > 240:
		risk += 15
	case p.Cholesterol > 200:
		risk += 10
	}

	switch {
	case p.FastingBS > 125:
		risk += 15
	case p.FastingBS > 100:
		risk += 10
	}

	switch p.Smoking {
	case "current":
		risk += 20
	case "former":
		risk += 10
	}

	switch p.Exercise {
	case "none":
		risk += 15
	case "1-2":
		risk += 5
	}

	if p.ExerciseAngina {
		risk += 10
	}

	risk = min(risk, MaxScore)
	return LifestyleResult{
		RiskPercentage: risk,
		RiskLevel:      lifestyleLevel(risk),
	}
}

func lifestyleLevel(risk int) LifestyleLevel {
	switch {
	case risk >= 70:
		return LifestyleHigh
	case risk >= 40:
		return LifestyleMedium
	default:
		return LifestyleLow
	}
}
