package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/heartcare-ai/heartcare/internal/assess"
	"github.com/heartcare-ai/heartcare/internal/cache"
	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/metrics"
	"github.com/heartcare-ai/heartcare/internal/recommend"
	"github.com/heartcare-ai/heartcare/internal/repository"
	"github.com/heartcare-ai/heartcare/internal/velocity"
	"github.com/heartcare-ai/heartcare/internal/worker"
)

// AssessmentResponse is the body returned for a newly scored assessment.
type AssessmentResponse struct {
	*domain.Assessment
	Alerts   []string `json:"alerts"`
	FollowUp bool     `json:"followUp"`
}

func newAssessmentResponse(a *domain.Assessment) AssessmentResponse {
	alerts := assess.Alerts(a)
	if alerts == nil {
		alerts = []string{}
	}
	return AssessmentResponse{
		Assessment: a,
		Alerts:     alerts,
		FollowUp:   assess.NeedsFollowUp(a),
	}
}

// CreateAssessment handles POST /assessments.
// Flow: validate -> limit -> score/screen/advise -> persist -> cache -> publish.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	userID := GetUserID(ctx)

	params, ok := h.readParams(w, r)
	if !ok {
		return
	}
	if !h.allowSubmission(w, r, userID) {
		return
	}

	a := h.processor.Process(ctx, &assess.Input{
		UserID:    userID,
		TraceID:   GetTraceID(ctx),
		Params:    params,
		StartTime: start,
	})

	if err := h.repo.SaveAssessment(ctx, userID, a); err != nil {
		h.logger.Error("failed to save assessment", "assessment_id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.cacheAssessment(r, userID, a)
	metrics.ObserveAssessment(a)
	h.publishScored(r, userID, a)

	h.logger.Info("assessment scored",
		"assessment_id", a.ID,
		"user_id", userID,
		"risk_level", a.RiskLevel,
		"risk_score", a.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusCreated, newAssessmentResponse(a))
}

// SubmitAssessmentAsync handles POST /assessments/async.
// The assessment is stored as pending and scored by the worker.
func (h *Handler) SubmitAssessmentAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	if !h.asyncAvailable() {
		writeError(w, http.StatusServiceUnavailable, "async scoring not available")
		return
	}

	params, ok := h.readParams(w, r)
	if !ok {
		return
	}
	if !h.allowSubmission(w, r, userID) {
		return
	}

	pending := &domain.Assessment{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    domain.StatusPending,
		Params:    params,
		Factors:   []string{},
		CreatedAt: time.Now().UTC(),
		Metadata:  domain.AssessmentMetadata{TraceID: GetTraceID(ctx)},
	}
	if err := h.repo.SaveAssessment(ctx, userID, pending); err != nil {
		h.logger.Error("failed to save pending assessment", "assessment_id", pending.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	payload, err := json.Marshal(worker.SubmittedMessage{
		AssessmentID: pending.ID,
		UserID:       userID,
		TraceID:      pending.Metadata.TraceID,
		Params:       params,
		CreatedAt:    pending.CreatedAt,
	})
	if err == nil {
		err = h.bus.Publish(ctx, domain.GlobalOwner, domain.TopicAssessmentSubmitted, payload)
	}
	if err != nil {
		h.logger.Error("failed to publish submission", "assessment_id", pending.ID, "error", err)
		// Nothing will ever score the row, so remove it.
		if derr := h.repo.DeleteAssessment(ctx, userID, pending.ID); derr != nil {
			h.logger.Error("failed to remove orphaned assessment", "assessment_id", pending.ID, "error", derr)
		}
		writeError(w, http.StatusServiceUnavailable, "async scoring not available")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     pending.ID,
		"status": domain.StatusPending,
	})
}

// allowSubmission applies the per-user velocity limit, writing a 429 when exceeded.
// Counter failures are logged and do not block the submission.
func (h *Handler) allowSubmission(w http.ResponseWriter, r *http.Request, userID string) bool {
	if h.velocity == nil || !h.velocity.Enabled() {
		return true
	}

	n, err := h.velocity.Allow(r.Context(), userID)
	if errors.Is(err, velocity.ErrLimitExceeded) {
		h.logger.Info("submission limit reached", "user_id", userID, "count", n)
		w.Header().Set("Retry-After", strconv.Itoa(int(h.velocity.RetryAfter().Seconds())))
		writeError(w, http.StatusTooManyRequests, MsgTooManyRequests)
		return false
	}
	if err != nil {
		h.logger.Warn("velocity check failed", "user_id", userID, "error", err)
	}
	return true
}

func (h *Handler) cacheAssessment(r *http.Request, userID string, a *domain.Assessment) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetAssessment(r.Context(), userID, a, h.cacheTTL); err != nil {
		h.logger.Warn("failed to cache assessment", "assessment_id", a.ID, "error", err)
	}
}

func (h *Handler) publishScored(r *http.Request, userID string, a *domain.Assessment) {
	if h.bus == nil {
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		h.logger.Error("failed to encode assessment event", "assessment_id", a.ID, "error", err)
		return
	}

	if err := h.bus.Publish(r.Context(), userID, domain.TopicAssessmentScored, payload); err != nil {
		h.logger.Warn("failed to publish scored assessment", "assessment_id", a.ID, "error", err)
	}
	if assess.IsHighRisk(a) {
		if err := h.bus.Publish(r.Context(), domain.GlobalOwner, domain.TopicRiskHigh, payload); err != nil {
			h.logger.Warn("failed to publish high risk alert", "assessment_id", a.ID, "error", err)
		}
	}
}

// ListAssessments returns the caller's history, newest first.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	var filter domain.AssessmentFilter
	if v := r.URL.Query().Get("level"); v != "" {
		level, ok := domain.ParseRiskLevel(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "level must be one of Low, Moderate, High")
			return
		}
		filter.Level = level
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	list, err := h.repo.ListAssessments(ctx, userID, filter)
	if err != nil {
		h.logger.Error("failed to list assessments", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": list,
		"count":       len(list),
	})
}

// AssessmentSummary returns aggregate figures over the caller's history.
func (h *Handler) AssessmentSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	list, err := h.repo.ListAssessments(ctx, userID, domain.AssessmentFilter{})
	if err != nil {
		h.logger.Error("failed to list assessments", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, domain.Summarize(list))
}

// GetAssessment returns one of the caller's assessments, reading through the cache.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAssessment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// loadAssessment resolves the {id} URL parameter for the caller.
// It writes 404 for unknown or foreign IDs.
func (h *Handler) loadAssessment(w http.ResponseWriter, r *http.Request) (*domain.Assessment, bool) {
	ctx := r.Context()
	userID := GetUserID(ctx)
	id := chi.URLParam(r, "id")

	if h.cache != nil {
		cached, err := h.cache.GetAssessment(ctx, userID, id)
		if err != nil {
			h.logger.Warn("cache lookup failed", "assessment_id", id, "error", err)
		}
		if cached != nil {
			return cached, true
		}
	}

	a, err := h.repo.GetAssessment(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidInput) {
		writeError(w, http.StatusNotFound, MsgAssessmentNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to get assessment", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return nil, false
	}

	// Pending rows change when the worker scores them.
	if a.Status == domain.StatusScored {
		h.cacheAssessment(r, userID, a)
	}
	return a, true
}

// DeleteAssessment removes one of the caller's assessments.
func (h *Handler) DeleteAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)
	id := chi.URLParam(r, "id")

	err := h.repo.DeleteAssessment(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidInput) {
		writeError(w, http.StatusNotFound, MsgAssessmentNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to delete assessment", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if h.cache != nil {
		if err := h.cache.Delete(ctx, userID, cache.AssessmentKey(id)); err != nil {
			h.logger.Warn("failed to invalidate cached assessment", "assessment_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": MsgAssessmentDeleted})
}

// Recommendations returns the structured plan for a scored assessment.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAssessment(w, r)
	if !ok {
		return
	}
	if a.Status != domain.StatusScored {
		writeError(w, http.StatusConflict, "assessment has not been scored yet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assessmentId": a.ID,
		"riskLevel":    a.RiskLevel,
		"markdown":     a.Recommendations,
		"plan":         recommend.BuildPlan(a.Result()),
	})
}
