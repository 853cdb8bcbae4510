// Package assess runs the assessment pipeline: scoring, screening and advice.
package assess

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/recommend"
	"github.com/heartcare-ai/heartcare/internal/rules"
	"github.com/heartcare-ai/heartcare/internal/scoring"
)

// EngineVersion is stamped into every assessment's metadata.
const EngineVersion = "heartcare-1.0"

// Screener evaluates screening rules. *rules.Engine satisfies it.
type Screener interface {
	EvaluateAll(ctx context.Context, input *rules.EvaluateInput) ([]domain.RuleResult, error)
}

// Processor turns validated health parameters into a complete assessment.
type Processor struct {
	screener Screener

	// HistoryWindow is the look-back passed to history-aware screening rules.
	HistoryWindow int // seconds

	logger *slog.Logger
}

// NewProcessor creates a processor. A nil screener disables screening.
func NewProcessor(screener Screener, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		screener:      screener,
		HistoryWindow: 86400,
		logger:        logger,
	}
}

// Input contains all data needed to build an assessment.
type Input struct {
	// AssessmentID reuses an existing ID (async path). Empty assigns a new one.
	AssessmentID string
	UserID       string
	TraceID      string
	Params       domain.HealthParameters
	StartTime    time.Time
	CreatedAt    time.Time
}

// Process scores, screens and annotates the input.
// Screening failures are logged and never block the result.
func (p *Processor) Process(ctx context.Context, in *Input) *domain.Assessment {
	start := in.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	a := &domain.Assessment{
		ID:        in.AssessmentID,
		UserID:    in.UserID,
		Params:    in.Params,
		CreatedAt: in.CreatedAt,
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	scoreStart := time.Now()
	result := scoring.Score(in.Params)
	a.ApplyResult(result)
	scoreMs := time.Since(scoreStart).Milliseconds()

	rulesStart := time.Now()
	if p.screener != nil {
		// Copy the factors so rules can never alias the stored slice.
		view := result
		view.Factors = append([]string(nil), result.Factors...)

		screenings, err := p.screener.EvaluateAll(ctx, &rules.EvaluateInput{
			UserID:        in.UserID,
			Params:        in.Params,
			Result:        view,
			HistoryWindow: p.HistoryWindow,
		})
		if err != nil {
			p.logger.Warn("screening failed",
				"assessment_id", a.ID,
				"error", err,
			)
		}
		a.Screenings = screenings
	}
	rulesMs := time.Since(rulesStart).Milliseconds()

	a.Recommendations = recommend.Markdown(result)

	a.Metadata = domain.AssessmentMetadata{
		TraceID:        in.TraceID,
		ScoreMs:        scoreMs,
		RulesMs:        rulesMs,
		TotalMs:        time.Since(start).Milliseconds(),
		RulesEvaluated: len(a.Screenings),
		EngineVersion:  EngineVersion,
	}

	return a
}

// Alerts returns the reasons of every flagged screening, in rule order.
func Alerts(a *domain.Assessment) []string {
	var out []string
	for _, s := range a.Screenings {
		if s.Flagged() {
			out = append(out, s.Reason)
		}
	}
	return out
}

// IsHighRisk reports whether the assessment landed in the High category.
func IsHighRisk(a *domain.Assessment) bool {
	return a.Status == domain.StatusScored && a.RiskLevel == domain.RiskHigh
}

// NeedsFollowUp is true for High results or any failed screening.
func NeedsFollowUp(a *domain.Assessment) bool {
	if IsHighRisk(a) {
		return true
	}
	for _, s := range a.Screenings {
		if s.SubRuleRef == domain.RuleOutcomeFail {
			return true
		}
	}
	return false
}
