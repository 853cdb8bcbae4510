package rules

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

func sampleInput() *EvaluateInput {
	return &EvaluateInput{
		UserID: "user-001",
		Params: domain.HealthParameters{
			Age:            52,
			Sex:            domain.SexMale,
			ChestPainType:  domain.ChestPainAsymptomatic,
			RestingBP:      138,
			Cholesterol:    250,
			FastingBS:      domain.FastingBSNormal,
			RestingECG:     domain.RestingECGNormal,
			MaxHR:          150,
			ExerciseAngina: domain.ExerciseAnginaNo,
			Oldpeak:        0.5,
			STSlope:        domain.STSlopeUp,
		},
		Result: domain.RiskResult{
			RiskScore: 75,
			RiskLevel: domain.RiskHigh,
			Factors:   []string{"Age over 50", "Male sex", "Asymptomatic chest pain", "Elevated blood pressure", "High cholesterol"},
		},
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(nil, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.RuleConfig{
		ID:         "test-rule-001",
		Name:       "Test Rule",
		Expression: "age > 60",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cases := []struct {
		name string
		rule *domain.RuleConfig
	}{
		{"Syntax", &domain.RuleConfig{ID: "bad", Expression: "this is not valid CEL !!!"}},
		{"UnknownVariable", &domain.RuleConfig{ID: "bad", Expression: "amount > 100.0"}},
		{"StringResult", &domain.RuleConfig{ID: "bad", Expression: "sex"}},
		{"MissingID", &domain.RuleConfig{Expression: "age > 1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := engine.LoadRule(tc.rule); err == nil {
				t.Error("expected load error")
			}
			if err := engine.ValidateRule(tc.rule); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if engine.RulesCount() != 0 {
		t.Errorf("invalid rules must not be loaded, got %d", engine.RulesCount())
	}
}

func TestEvaluateBandedRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := DefaultScreeningRules()[0] // bp-crisis
	if err := engine.LoadRule(rule); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	cases := []struct {
		bp   int
		want string
	}{
		{138, domain.RuleOutcomePass},
		{165, domain.RuleOutcomeReview},
		{180, domain.RuleOutcomeFail},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("BP%d", tc.bp), func(t *testing.T) {
			input := sampleInput()
			input.Params.RestingBP = tc.bp

			results, err := engine.EvaluateAll(ctx, input)
			if err != nil {
				t.Fatalf("evaluation failed: %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].SubRuleRef != tc.want {
				t.Errorf("expected %s, got %s (%s)", tc.want, results[0].SubRuleRef, results[0].Reason)
			}
		})
	}
}

func TestEvaluateResultVariables(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "uses-result",
		Expression: `risk_level == "High" && factor_count >= 5 && "Male sex" in factors && params.cholesterol == 250`,
		Enabled:    true,
	})

	results, err := engine.EvaluateAll(context.Background(), sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Value != 1.0 {
		t.Errorf("expected 1.0, got %.2f (%s)", results[0].Value, results[0].Reason)
	}
}

func TestHistoryRule(t *testing.T) {
	var gotUser string
	var gotWindow int
	getter := func(ctx context.Context, userID string, windowSecs int) (int64, error) {
		gotUser, gotWindow = userID, windowSecs
		return 12, nil
	}

	engine, _ := NewEngine(getter, 5)
	defer engine.Close()

	rules := DefaultScreeningRules()
	resub := rules[len(rules)-1]
	resub.Enabled = true
	engine.LoadRule(resub)

	input := sampleInput()
	input.HistoryWindow = 86400

	results, _ := engine.EvaluateAll(context.Background(), input)

	if gotUser != "user-001" || gotWindow != 86400 {
		t.Errorf("history getter called with %q/%d", gotUser, gotWindow)
	}
	if results[0].Value != 12 {
		t.Errorf("expected value 12, got %.0f", results[0].Value)
	}
	if results[0].SubRuleRef != domain.RuleOutcomeReview {
		t.Errorf("expected REVIEW, got %s", results[0].SubRuleRef)
	}
}

func TestEvaluationError(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	engine.LoadRule(&domain.RuleConfig{
		ID:         "div-zero",
		Expression: "100 / (resting_bp - resting_bp)",
		Enabled:    true,
	})

	results, _ := engine.EvaluateAll(context.Background(), sampleInput())
	if results[0].SubRuleRef != domain.RuleOutcomeError {
		t.Errorf("expected ERR, got %s", results[0].SubRuleRef)
	}
}

func TestParallelExecutionOrdered(t *testing.T) {
	engine, _ := NewEngine(nil, 3)
	defer engine.Close()

	for i := 9; i >= 0; i-- {
		engine.LoadRule(&domain.RuleConfig{
			ID:         fmt.Sprintf("rule-%d", i),
			Name:       fmt.Sprintf("Rule %d", i),
			Expression: "age > 0",
			Enabled:    true,
		})
	}

	results, err := engine.EvaluateAll(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("parallel evaluation failed: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for i, r := range results {
		if r.RuleID != fmt.Sprintf("rule-%d", i) {
			t.Errorf("result %d: expected rule-%d, got %s", i, i, r.RuleID)
		}
		if r.Value != 1.0 {
			t.Errorf("rule %d: expected 1.0, got %.2f", i, r.Value)
		}
	}
}

func TestScreeningDoesNotMutateResult(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()
	engine.LoadRules(DefaultScreeningRules())

	input := sampleInput()
	before := input.Result
	beforeFactors := append([]string(nil), input.Result.Factors...)

	engine.EvaluateAll(context.Background(), input)

	if input.Result.RiskScore != before.RiskScore || input.Result.RiskLevel != before.RiskLevel {
		t.Error("screening changed the risk result")
	}
	if !reflect.DeepEqual(input.Result.Factors, beforeFactors) {
		t.Error("screening changed the factors")
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	engine.LoadRules(DefaultScreeningRules())
	if engine.RulesCount() != 4 {
		t.Fatalf("expected 4 enabled default rules, got %d", engine.RulesCount())
	}

	err := engine.ReloadRules([]*domain.RuleConfig{
		{ID: "ok", Expression: "age > 1", Enabled: true},
		{ID: "broken", Expression: "age >", Enabled: true},
	})
	if err == nil {
		t.Fatal("expected reload error")
	}
	if engine.RulesCount() != 4 {
		t.Errorf("failed reload must keep previous rules, got %d", engine.RulesCount())
	}

	err = engine.ReloadRules([]*domain.RuleConfig{
		{ID: "b", Expression: "age > 1", Enabled: true},
		{ID: "a", Expression: "age > 2", Enabled: true},
		{ID: "off", Expression: "age > 3", Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	loaded := engine.GetLoadedRules()
	if len(loaded) != 2 || loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Errorf("unexpected loaded rules: %v", loaded)
	}
}

func TestMatchBand(t *testing.T) {
	bands := []domain.RuleBand{
		{LowerLimit: limit(0), UpperLimit: limit(0.5), SubRuleRef: domain.RuleOutcomePass, Reason: "low"},
		{LowerLimit: limit(0.5), UpperLimit: limit(1), SubRuleRef: domain.RuleOutcomeReview, Reason: "mid"},
		{LowerLimit: limit(1), SubRuleRef: domain.RuleOutcomeFail, Reason: "high"},
	}

	cases := []struct {
		value float64
		want  string
	}{
		{0, domain.RuleOutcomePass},
		{0.49, domain.RuleOutcomePass},
		{0.5, domain.RuleOutcomeReview},
		{1, domain.RuleOutcomeFail},
		{42, domain.RuleOutcomeFail},
	}
	for _, tc := range cases {
		if got, _ := matchBand(tc.value, bands); got != tc.want {
			t.Errorf("matchBand(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}

	if got, reason := matchBand(1, nil); got != domain.RuleOutcomePass || reason != "no matching band" {
		t.Errorf("expected default pass, got %s %q", got, reason)
	}
}
