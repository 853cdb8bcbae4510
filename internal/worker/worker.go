// Package worker scores assessments submitted through the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/heartcare-ai/heartcare/internal/assess"
	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/metrics"
)

// SubmittedMessage is the payload of heartcare.assessment.submitted.
type SubmittedMessage struct {
	AssessmentID string                  `json:"assessmentId"`
	UserID       string                  `json:"userId"`
	TraceID      string                  `json:"traceId"`
	Params       domain.HealthParameters `json:"parameters"`
	CreatedAt    time.Time               `json:"createdAt"`
}

// Worker consumes submitted assessments, scores them and publishes the outcome.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	cacheTTL  time.Duration
	processor *assess.Processor
	logger    *slog.Logger

	mu            sync.Mutex
	subscriptions []domain.Subscription
	processed     int64
	failed        int64
	ctx           context.Context
	cancel        context.CancelFunc
}

// Options holds optional worker dependencies.
type Options struct {
	Cache    domain.Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, processor *assess.Processor, opts Options) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &Worker{
		bus:       bus,
		repo:      repo,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		processor: processor,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// QueueGroup is shared by every worker replica so each submission is scored once.
const QueueGroup = "heartcare-workers"

// Start joins the worker queue group on the service-wide submission topic.
func (w *Worker) Start() error {
	sub, err := w.bus.QueueSubscribe(w.ctx, domain.GlobalOwner, domain.TopicAssessmentSubmitted, QueueGroup, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicAssessmentSubmitted, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	w.logger.Info("assessment worker started", "topic", domain.TopicAssessmentSubmitted, "group", QueueGroup)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	err := w.process(ctx, msg)

	w.mu.Lock()
	if err != nil {
		w.failed++
	} else {
		w.processed++
	}
	w.mu.Unlock()

	return err
}

// process scores one submission and stores the result over the pending row.
func (w *Worker) process(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var sm SubmittedMessage
	if err := json.Unmarshal(msg.Payload, &sm); err != nil {
		return fmt.Errorf("failed to parse submission %s: %w", msg.ID, err)
	}
	if sm.AssessmentID == "" || sm.UserID == "" {
		return errors.New("submission without assessment or user id")
	}

	traceID := sm.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	w.logger.Debug("scoring submitted assessment",
		"assessment_id", sm.AssessmentID,
		"user_id", sm.UserID,
		"trace_id", traceID,
	)

	a := w.processor.Process(ctx, &assess.Input{
		AssessmentID: sm.AssessmentID,
		UserID:       sm.UserID,
		TraceID:      traceID,
		Params:       sm.Params,
		StartTime:    start,
		CreatedAt:    sm.CreatedAt,
	})

	if w.repo != nil {
		if err := w.repo.UpdateAssessment(ctx, sm.UserID, a); err != nil {
			return fmt.Errorf("failed to store scored assessment %s: %w", a.ID, err)
		}
	}
	if w.cache != nil {
		if err := w.cache.SetAssessment(ctx, sm.UserID, a, w.cacheTTL); err != nil {
			w.logger.Warn("failed to cache assessment", "assessment_id", a.ID, "error", err)
		}
	}
	metrics.ObserveAssessment(a)

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assessment %s: %w", a.ID, err)
	}

	if err := w.bus.Publish(ctx, sm.UserID, domain.TopicAssessmentScored, payload); err != nil {
		w.logger.Error("failed to publish scored assessment",
			"assessment_id", a.ID,
			"error", err,
		)
	}

	if assess.IsHighRisk(a) {
		if err := w.bus.Publish(ctx, domain.GlobalOwner, domain.TopicRiskHigh, payload); err != nil {
			w.logger.Error("failed to publish high risk alert",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	w.logger.Info("assessment scored",
		"assessment_id", a.ID,
		"user_id", sm.UserID,
		"risk_level", a.RiskLevel,
		"risk_score", a.RiskScore,
		"alerts", len(assess.Alerts(a)),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop cancels in-flight handlers and removes every subscription.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("assessment worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed,
		Failed:            w.failed,
	}
}
