// Package recommend generates deterministic lifestyle advice from a risk result.
package recommend

import (
	"strings"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

var levelAdvice = map[domain.RiskLevel][]string{
	domain.RiskLow: {
		"## Excellent! Your cardiovascular health looks good 🎉",
		"### Keep up the great work:",
		"- Maintain regular exercise (150 minutes/week)",
		"- Continue a balanced diet rich in fruits and vegetables",
		"- Keep regular health check-ups",
		"- Stay hydrated and get adequate sleep",
	},
	domain.RiskModerate: {
		"## Moderate Risk - Lifestyle Improvements Needed ⚠️",
		"### Consider these lifestyle changes:",
		"- Increase physical activity to at least 30 minutes daily",
		"- Reduce sodium intake to less than 2,300mg/day",
		"- Incorporate heart-healthy foods (omega-3 fatty acids)",
		"- Monitor blood pressure regularly",
		"- Consider stress management techniques",
	},
	domain.RiskHigh: {
		"## High Risk - Immediate Action Required 🚨",
		"### Urgent recommendations:",
		"- **Schedule an appointment with a cardiologist immediately**",
		"- Implement comprehensive lifestyle changes",
		"- Monitor all vital signs regularly",
		"- Consider medication under medical supervision",
		"- Adopt a strict heart-healthy diet",
	},
}

// factorAdvice is checked in order; the first keyword found in a factor wins.
var factorAdvice = []struct {
	keyword string
	lines   []string
}{
	{"blood pressure", []string{
		"### Blood Pressure Management:",
		"- Limit alcohol consumption",
		"- Practice relaxation techniques",
		"- Monitor BP daily",
	}},
	{"cholesterol", []string{
		"### Cholesterol Control:",
		"- Reduce saturated and trans fats",
		"- Increase fiber intake",
		"- Consider plant stanols/sterols",
	}},
	{"exercise", []string{
		"### Exercise Guidelines:",
		"- Start with low-impact activities",
		"- Consult physician before intense exercise",
		"- Monitor heart rate during activity",
	}},
	{"blood sugar", []string{
		"### Blood Sugar Management:",
		"- Monitor carbohydrate intake",
		"- Consider diabetes screening",
		"- Maintain healthy weight",
	}},
}

var generalTips = []string{
	"### General Heart Health Tips:",
	"- Don't smoke or use tobacco",
	"- Limit processed foods",
	"- Maintain healthy weight",
	"- Manage stress effectively",
	"- Get adequate sleep (7-9 hours)",
}

// Markdown renders the advice text stored with each assessment.
// Any level other than Low or Moderate gets the High advice.
func Markdown(r domain.RiskResult) string {
	var lines []string

	base, ok := levelAdvice[r.RiskLevel]
	if !ok {
		base = levelAdvice[domain.RiskHigh]
	}
	lines = append(lines, base...)

	for _, factor := range r.Factors {
		f := strings.ToLower(factor)
		for _, fa := range factorAdvice {
			if strings.Contains(f, fa.keyword) {
				lines = append(lines, fa.lines...)
				break
			}
		}
	}

	lines = append(lines, generalTips...)
	return strings.Join(lines, "\n\n")
}
