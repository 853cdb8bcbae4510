package assess

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/rules"
)

func highRiskParams() domain.HealthParameters {
	return domain.HealthParameters{
		Age: 65, Sex: "M", ChestPainType: "ASY", RestingBP: 185, Cholesterol: 310,
		FastingBS: "1", RestingECG: "LVH", MaxHR: 100, ExerciseAngina: "Y", Oldpeak: 3, STSlope: "Down",
	}
}

func lowRiskParams() domain.HealthParameters {
	return domain.HealthParameters{
		Age: 30, Sex: "F", ChestPainType: "TA", RestingBP: 110, Cholesterol: 150,
		FastingBS: "0", RestingECG: "Normal", MaxHR: 180, ExerciseAngina: "N", Oldpeak: 0, STSlope: "Up",
	}
}

type failingScreener struct{}

func (failingScreener) EvaluateAll(context.Context, *rules.EvaluateInput) ([]domain.RuleResult, error) {
	return nil, errors.New("boom")
}

// mutatingScreener tries to tamper with the result it is shown.
type mutatingScreener struct{}

func (mutatingScreener) EvaluateAll(_ context.Context, in *rules.EvaluateInput) ([]domain.RuleResult, error) {
	if len(in.Result.Factors) > 0 {
		in.Result.Factors[0] = "tampered"
	}
	in.Result.RiskScore = 0
	return []domain.RuleResult{{RuleID: "x", SubRuleRef: domain.RuleOutcomePass}}, nil
}

func TestProcessor(t *testing.T) {
	engine, err := rules.NewEngine(nil, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	if err := engine.LoadRules(rules.DefaultScreeningRules()); err != nil {
		t.Fatal(err)
	}

	proc := NewProcessor(engine, nil)
	ctx := context.Background()

	t.Run("HighRisk", func(t *testing.T) {
		a := proc.Process(ctx, &Input{
			UserID:    "user-001",
			TraceID:   "trace-001",
			Params:    highRiskParams(),
			StartTime: time.Now(),
		})

		if a.ID == "" {
			t.Error("expected generated ID")
		}
		if a.Status != domain.StatusScored {
			t.Errorf("expected scored, got %s", a.Status)
		}
		if a.RiskScore != 100 || a.RiskLevel != domain.RiskHigh {
			t.Errorf("unexpected result %d %s", a.RiskScore, a.RiskLevel)
		}
		if !IsHighRisk(a) || !NeedsFollowUp(a) {
			t.Error("expected high risk follow-up")
		}
		if a.Metadata.TraceID != "trace-001" {
			t.Errorf("expected traceID 'trace-001', got '%s'", a.Metadata.TraceID)
		}
		if a.Metadata.RulesEvaluated != 4 {
			t.Errorf("expected 4 screenings, got %d", a.Metadata.RulesEvaluated)
		}
		if a.Metadata.EngineVersion != EngineVersion {
			t.Errorf("unexpected engine version %q", a.Metadata.EngineVersion)
		}
		if !strings.HasPrefix(a.Recommendations, "## High Risk") {
			t.Errorf("unexpected recommendations header: %.40q", a.Recommendations)
		}

		alerts := Alerts(a)
		if len(alerts) != 3 {
			t.Errorf("expected 3 alerts (bp, ischemia, cholesterol), got %v", alerts)
		}
	})

	t.Run("LowRisk", func(t *testing.T) {
		a := proc.Process(ctx, &Input{UserID: "user-001", Params: lowRiskParams()})

		if a.RiskLevel != domain.RiskLow || IsHighRisk(a) || NeedsFollowUp(a) {
			t.Errorf("unexpected low risk outcome: %+v", a)
		}
		if len(Alerts(a)) != 0 {
			t.Errorf("expected no alerts, got %v", Alerts(a))
		}
		if a.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("KeepsAssessmentID", func(t *testing.T) {
		created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		a := proc.Process(ctx, &Input{AssessmentID: "fixed-id", Params: lowRiskParams(), CreatedAt: created})
		if a.ID != "fixed-id" || !a.CreatedAt.Equal(created) {
			t.Errorf("expected supplied id and time, got %s %s", a.ID, a.CreatedAt)
		}
	})
}

func TestProcessorScreeningFailure(t *testing.T) {
	proc := NewProcessor(failingScreener{}, nil)
	a := proc.Process(context.Background(), &Input{Params: highRiskParams()})

	if a.Status != domain.StatusScored || a.RiskScore != 100 {
		t.Errorf("screening failure must not block scoring: %+v", a)
	}
	if len(a.Screenings) != 0 {
		t.Errorf("expected no screenings, got %d", len(a.Screenings))
	}
}

func TestProcessorScreeningIsolation(t *testing.T) {
	proc := NewProcessor(mutatingScreener{}, nil)
	a := proc.Process(context.Background(), &Input{Params: highRiskParams()})

	if a.RiskScore != 100 {
		t.Errorf("screener changed the score: %d", a.RiskScore)
	}
	if a.Factors[0] != "Age over 60" {
		t.Errorf("screener changed the factors: %v", a.Factors)
	}
}

func TestProcessorWithoutScreener(t *testing.T) {
	proc := NewProcessor(nil, nil)
	a := proc.Process(context.Background(), &Input{Params: lowRiskParams()})
	if a.Metadata.RulesEvaluated != 0 || a.Screenings != nil {
		t.Errorf("expected no screenings, got %+v", a.Screenings)
	}
}
