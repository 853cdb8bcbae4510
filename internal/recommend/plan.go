package recommend

import (
	"strings"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// Priority of a recommendation item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Item is a single recommendation.
type Item struct {
	Priority Priority `json:"priority"`
	Text     string   `json:"text"`
}

// Week is one step of the four-week action plan.
type Week struct {
	Week    int    `json:"week"`
	Actions string `json:"actions"`
}

// Plan is the structured advice shown on the recommendations page.
type Plan struct {
	RiskLevel  domain.RiskLevel `json:"riskLevel"`
	RiskScore  int              `json:"riskScore"`
	Summary    string           `json:"summary"`
	Lifestyle  []Item           `json:"lifestyle"`
	Nutrition  []Item           `json:"nutrition"`
	Exercise   []Item           `json:"exercise"`
	Medical    []Item           `json:"medical"`
	ActionPlan []Week           `json:"actionPlan"`
}

var summaries = map[domain.RiskLevel]string{
	domain.RiskLow:      "Your assessment indicates a low cardiovascular risk. Keep your current habits and continue regular check-ups.",
	domain.RiskModerate: "Based on your assessment, we recommend focusing on lifestyle modifications and regular health monitoring.",
	domain.RiskHigh:     "Your assessment indicates a high cardiovascular risk. Please consult a cardiologist as soon as possible.",
}

// BuildPlan builds structured advice for r. The base content is the same for every
// level; the level adjusts priorities and medical follow-up, and each factor
// adds targeted items.
func BuildPlan(r domain.RiskResult) *Plan {
	level := r.RiskLevel
	if _, ok := summaries[level]; !ok {
		level = domain.RiskHigh
	}

	p := &Plan{
		RiskLevel: level,
		RiskScore: r.RiskScore,
		Summary:   summaries[level],
		Lifestyle: []Item{
			{PriorityHigh, "Quit smoking or avoid exposure to secondhand smoke"},
			{PriorityHigh, "Manage stress through meditation, yoga, or counseling"},
			{PriorityMedium, "Maintain healthy sleep patterns (7-9 hours per night)"},
		},
		Nutrition: []Item{
			{PriorityHigh, "Follow a heart-healthy diet rich in fruits, vegetables, and whole grains"},
			{PriorityHigh, "Limit sodium intake to less than 2,300mg per day"},
			{PriorityMedium, "Reduce saturated fats and avoid trans fats"},
		},
		Exercise: []Item{
			{PriorityHigh, "Aim for 150 minutes of moderate aerobic activity per week"},
			{PriorityMedium, "Include strength training exercises twice a week"},
			{PriorityLow, "Take regular breaks from sitting every hour"},
		},
		Medical: []Item{
			{PriorityHigh, "Schedule regular check-ups with your healthcare provider"},
			{PriorityMedium, "Monitor blood pressure and cholesterol levels regularly"},
			{PriorityMedium, "Discuss medication options if lifestyle changes are insufficient"},
		},
		ActionPlan: []Week{
			{1, "Start tracking daily food intake and physical activity. Schedule doctor appointment."},
			{2, "Begin 30-minute walks 3 times per week. Reduce sodium in diet."},
			{3, "Increase exercise to 5 times per week. Implement stress management techniques."},
			{4, "Review progress. Adjust plan based on results. Schedule follow-up assessment."},
		},
	}

	switch level {
	case domain.RiskLow:
		lower(p.Lifestyle)
		lower(p.Nutrition)
		p.Medical[0] = Item{PriorityMedium, "Keep annual check-ups with your healthcare provider"}
	case domain.RiskHigh:
		p.Medical = append([]Item{
			{PriorityHigh, "Schedule an appointment with a cardiologist immediately"},
		}, p.Medical...)
		p.Exercise[0] = Item{PriorityHigh, "Consult your physician before starting any new exercise program"}
		p.ActionPlan[0].Actions = "See a cardiologist this week. Start tracking blood pressure, diet and activity daily."
	}

	for _, factor := range r.Factors {
		f := strings.ToLower(factor)
		switch {
		case strings.Contains(f, "blood pressure"):
			p.Medical = append(p.Medical, Item{PriorityHigh, "Monitor blood pressure daily and keep a log"})
			p.Nutrition = append(p.Nutrition, Item{PriorityHigh, "Limit alcohol consumption"})
		case strings.Contains(f, "cholesterol"):
			p.Nutrition = append(p.Nutrition, Item{PriorityHigh, "Increase fiber intake and consider plant stanols/sterols"})
			p.Medical = append(p.Medical, Item{PriorityMedium, "Request a lipid panel at your next visit"})
		case strings.Contains(f, "exercise"):
			p.Exercise = append(p.Exercise, Item{PriorityHigh, "Start with low-impact activities and monitor heart rate during activity"})
		case strings.Contains(f, "blood sugar"):
			p.Nutrition = append(p.Nutrition, Item{PriorityHigh, "Monitor carbohydrate intake"})
			p.Medical = append(p.Medical, Item{PriorityHigh, "Consider diabetes screening"})
		}
	}

	return p
}

func lower(items []Item) {
	for i := range items {
		if items[i].Priority == PriorityHigh {
			items[i].Priority = PriorityMedium
		}
	}
}
