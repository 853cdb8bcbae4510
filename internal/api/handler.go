package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/heartcare-ai/heartcare/internal/assess"
	"github.com/heartcare-ai/heartcare/internal/auth"
	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/intake"
	"github.com/heartcare-ai/heartcare/internal/repository"
	"github.com/heartcare-ai/heartcare/internal/rules"
	"github.com/heartcare-ai/heartcare/internal/scoring"
	"github.com/heartcare-ai/heartcare/internal/velocity"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// Response messages shown to clients.
const (
	MsgAssessmentNotFound = "Assessment not found"
	MsgAssessmentDeleted  = "Assessment deleted successfully"
	MsgTooManyRequests    = "Too many assessments submitted, please try again later"
	MsgInvalidBody        = "invalid JSON request body"
	msgInternal           = "internal server error"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	cacheTTL  time.Duration
	bus       domain.EventBus
	engine    *rules.Engine
	processor *assess.Processor
	tokens    *auth.TokenService
	velocity  *velocity.Service
	operators map[string]bool
	async     bool
	version   string
	logger    *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.AssessmentTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	operators := make(map[string]bool, len(deps.OperatorEmails))
	for _, email := range deps.OperatorEmails {
		operators[normalizeEmail(email)] = true
	}
	return &Handler{
		repo:      deps.Repo,
		cache:     deps.Cache,
		cacheTTL:  ttl,
		bus:       deps.Bus,
		engine:    deps.Engine,
		processor: deps.Processor,
		tokens:    deps.Tokens,
		velocity:  deps.Velocity,
		operators: operators,
		async:     deps.Async,
		version:   deps.Version,
		logger:    logger,
	}
}

// Root identifies the service.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "HeartCareAI API is running",
		"version": h.version,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			h.logger.Warn("repository ping failed", "error", err)
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			h.logger.Warn("cache ping failed", "error", err)
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":       true,
		"rulesLoaded": h.engine != nil && h.engine.RulesCount() > 0,
		"async":       h.asyncAvailable(),
	})
}

// Score handles POST /score: stateless scoring of a submitted form.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	params, ok := h.readParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, scoring.Score(params))
}

// ScoreLifestyle handles POST /score/lifestyle.
func (h *Handler) ScoreLifestyle(w http.ResponseWriter, r *http.Request) {
	var req scoring.LifestyleParameters
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, scoring.ScoreLifestyle(req))
}

// readParams decodes and validates a health form, writing a 400 on failure.
func (h *Handler) readParams(w http.ResponseWriter, r *http.Request) (domain.HealthParameters, bool) {
	var form map[string]any

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&form); err != nil || form == nil {
		writeError(w, http.StatusBadRequest, MsgInvalidBody)
		return domain.HealthParameters{}, false
	}

	params, err := intake.Parse(form)
	if err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  verr.Error(),
				"fields": verr.Fields,
			})
			return params, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return params, false
	}
	return params, true
}

// ListRules returns all loaded rules from the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a rule by ID from the repository, including disabled rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	if h.repo != nil {
		rule, err := h.repo.GetRuleConfig(r.Context(), ruleID)
		if err == nil {
			writeJSON(w, http.StatusOK, rule)
			return
		}
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Error("failed to get rule", "id", ruleID, "error", err)
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
	}

	writeError(w, http.StatusNotFound, "rule not found")
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule validates a rule and saves it to the database.
// Call POST /rules/reload to apply it.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeError(w, http.StatusBadRequest, "id, name, and expression are required")
		return
	}
	if len(req.Bands) == 0 {
		writeError(w, http.StatusBadRequest, "at least one band is required")
		return
	}

	cfg := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled,
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	if err := h.engine.ValidateRule(cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid CEL expression: "+err.Error())
		return
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}
	if err := h.repo.SaveRuleConfig(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save rule config", "id", cfg.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	h.logger.Info("rule saved", "id", cfg.ID, "name", cfg.Name, "enabled", cfg.Enabled)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    cfg,
		"message": "Rule saved. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	stored, err := h.repo.ListRuleConfigs(r.Context())
	if err != nil {
		h.logger.Error("failed to list rules from database", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules from database")
		return
	}

	// A rule that no longer compiles keeps the previous set active.
	if err := h.engine.ReloadRules(stored); err != nil {
		h.logger.Error("failed to reload rules into engine", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "failed to reload rules: "+err.Error())
		return
	}

	h.logger.Info("rules reloaded from database", "stored", len(stored), "loaded", h.engine.RulesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   h.engine.RulesCount(),
	})
}

// ContactRequest is the body of POST /contact.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Contact persists a contact form message and announces it on the bus.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg := &domain.ContactMessage{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		Email:     normalizeEmail(req.Email),
		Subject:   strings.TrimSpace(req.Subject),
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: time.Now().UTC(),
	}
	if msg.Name == "" || msg.Message == "" || !validEmail(msg.Email) {
		writeError(w, http.StatusBadRequest, "name, a valid email and message are required")
		return
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}
	if err := h.repo.SaveContactMessage(r.Context(), msg); err != nil {
		h.logger.Error("failed to save contact message", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if h.bus != nil {
		payload, _ := json.Marshal(msg)
		if err := h.bus.Publish(r.Context(), domain.GlobalOwner, domain.TopicContactReceived, payload); err != nil {
			h.logger.Warn("failed to publish contact message", "id", msg.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      msg.ID,
		"message": "Thank you for your message. We will get back to you soon.",
	})
}

func (h *Handler) asyncAvailable() bool {
	return h.async && h.bus != nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, MsgInvalidBody)
		return false
	}
	return true
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	local, domainPart, ok := strings.Cut(s, "@")
	return ok && local != "" && strings.Contains(domainPart, ".") && !strings.ContainsAny(s, " \t")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"internal server error"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
