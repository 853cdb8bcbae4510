package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/heartcare-ai/heartcare/internal/assess"
	"github.com/heartcare-ai/heartcare/internal/auth"
	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/rules"
	"github.com/heartcare-ai/heartcare/internal/velocity"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the API serves.
// Cache, Bus and Velocity are optional.
type Deps struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Engine    *rules.Engine
	Processor *assess.Processor
	Tokens    *auth.TokenService
	Velocity  *velocity.Service

	AssessmentTTL time.Duration

	// OperatorEmails sign up with the operator role.
	OperatorEmails []string

	// Async enables POST /assessments/async. A worker must be consuming the bus.
	Async bool

	Version string
	Logger  *slog.Logger
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Deps) *Server {
	handler := NewHandler(deps)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(MetricsMiddleware)      // Prometheus request metrics
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Public endpoints
	router.Get("/", handler.Root)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	router.Post("/score", handler.Score)
	router.Post("/score/lifestyle", handler.ScoreLifestyle)
	router.Post("/contact", handler.Contact)

	router.Post("/auth/signup", handler.Signup)
	router.Post("/auth/login", handler.Login)

	// Authenticated endpoints
	router.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Tokens))

		r.Post("/auth/logout", handler.Logout)
		r.Get("/auth/me", handler.Me)
		r.Put("/auth/me", handler.UpdateMe)
		r.Post("/auth/password", handler.ChangePassword)

		r.Post("/assessments", handler.CreateAssessment)
		r.Post("/assessments/async", handler.SubmitAssessmentAsync)
		r.Get("/assessments", handler.ListAssessments)
		r.Get("/assessments/summary", handler.AssessmentSummary)
		r.Get("/assessments/{id}", handler.GetAssessment)
		r.Delete("/assessments/{id}", handler.DeleteAssessment)

		r.Get("/recommendations/{id}", handler.Recommendations)

		// Screening rules apply to every user, so changes need an operator
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Group(func(r chi.Router) {
			r.Use(handler.RequireOperator)
			r.Post("/rules", handler.CreateRule)
			r.Post("/rules/reload", handler.ReloadRules)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
