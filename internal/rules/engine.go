// Package rules provides the CEL-Go based screening rule engine.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/heartcare-ai/heartcare/internal/domain"
)

// Engine is the CEL-based screening rule engine.
// Screenings are advisory and never change the risk result they inspect.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	historyGetter HistoryGetter
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// HistoryGetter returns how many assessments a user submitted in a time window.
type HistoryGetter func(ctx context.Context, userID string, windowSecs int) (int64, error)

// NewEngine creates a new screening engine.
func NewEngine(historyGetter HistoryGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("age", cel.IntType),
		cel.Variable("sex", cel.StringType),
		cel.Variable("chest_pain_type", cel.StringType),
		cel.Variable("resting_bp", cel.IntType),
		cel.Variable("cholesterol", cel.IntType),
		cel.Variable("fasting_bs", cel.StringType),
		cel.Variable("resting_ecg", cel.StringType),
		cel.Variable("max_hr", cel.IntType),
		cel.Variable("exercise_angina", cel.StringType),
		cel.Variable("oldpeak", cel.DoubleType),
		cel.Variable("st_slope", cel.StringType),
		// Scorer output
		cel.Variable("risk_score", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("factor_count", cel.IntType),
		cel.Variable("factors", cel.ListType(cel.StringType)),
		// Submission history
		cel.Variable("recent_assessments", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		historyGetter: historyGetter,
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the assessment data for screening.
type EvaluateInput struct {
	UserID        string
	Params        domain.HealthParameters
	Result        domain.RiskResult
	HistoryWindow int // seconds
}

// EvaluateAll evaluates all loaded rules in parallel.
// Results are ordered by rule ID.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.RuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})

	var recent int64
	if e.historyGetter != nil && input.UserID != "" && input.HistoryWindow > 0 {
		count, err := e.historyGetter(ctx, input.UserID, input.HistoryWindow)
		if err == nil {
			recent = count
		}
	}

	activation := Activation(input.Params, input.Result)
	activation["recent_assessments"] = recent

	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// Activation builds the CEL variables for an assessment.
// Every health parameter is exposed both top-level and under params.
func Activation(p domain.HealthParameters, r domain.RiskResult) map[string]any {
	params := map[string]any{
		"age":             int64(p.Age),
		"sex":             string(p.Sex),
		"chest_pain_type": string(p.ChestPainType),
		"resting_bp":      int64(p.RestingBP),
		"cholesterol":     int64(p.Cholesterol),
		"fasting_bs":      string(p.FastingBS),
		"resting_ecg":     string(p.RestingECG),
		"max_hr":          int64(p.MaxHR),
		"exercise_angina": string(p.ExerciseAngina),
		"oldpeak":         p.Oldpeak,
		"st_slope":        string(p.STSlope),
	}

	factors := r.Factors
	if factors == nil {
		factors = []string{}
	}

	vars := make(map[string]any, len(params)+6)
	for k, v := range params {
		vars[k] = v
	}
	vars["params"] = params
	vars["risk_score"] = int64(r.RiskScore)
	vars["risk_level"] = string(r.RiskLevel)
	vars["factor_count"] = int64(len(factors))
	vars["factors"] = factors
	vars["recent_assessments"] = int64(0)
	return vars
}

func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) domain.RuleResult {
	start := time.Now()

	result := domain.RuleResult{
		RuleID:   rule.Config.ID,
		RuleName: rule.Config.Name,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.SubRuleRef = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	value := toValue(out)
	result.Value = value

	result.SubRuleRef, result.Reason = matchBand(value, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toValue converts a CEL value to a number.
func toValue(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a value.
// Bands are evaluated in order: lower inclusive, upper exclusive,
// and a nil upper means unbounded.
func matchBand(value float64, bands []domain.RuleBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if value < lower {
			continue
		}
		if band.UpperLimit == nil || value < *band.UpperLimit {
			return band.SubRuleRef, band.Reason
		}
	}

	return domain.RuleOutcomePass, "no matching band"
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules replaces all loaded rules atomically.
// On a compile error the previous rule set stays active.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the loaded rule configurations ordered by ID.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
