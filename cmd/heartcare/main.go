// HeartCare - Cardiovascular risk assessment service.
// Copyright (c) 2025 HeartCareAI
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heartcare-ai/heartcare/internal/api"
	"github.com/heartcare-ai/heartcare/internal/assess"
	"github.com/heartcare-ai/heartcare/internal/auth"
	"github.com/heartcare-ai/heartcare/internal/bus"
	"github.com/heartcare-ai/heartcare/internal/cache"
	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/repository"
	"github.com/heartcare-ai/heartcare/internal/rules"
	"github.com/heartcare-ai/heartcare/internal/velocity"
	"github.com/heartcare-ai/heartcare/internal/worker"
	"github.com/joho/godotenv"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// A missing .env is fine; real environment variables always win.
	envErr := godotenv.Load()

	cfg, err := domain.LoadConfig(os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", envErr)
	}

	slog.Info("starting heartcare",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	if cfg.Auth.JWTSecret == "" {
		slog.Warn("HEARTCARE_JWT_SECRET is not set, using the development secret")
		cfg.Auth.JWTSecret = domain.DevJWTSecret
	}

	slog.Info("configuration loaded",
		"profile", cfg.Profile,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"async_worker", cfg.AsyncWorker,
		"tracing", cfg.Tracing.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl, cfg.Velocity)
	slog.Info("velocity service initialized",
		"max_submissions", cfg.Velocity.MaxSubmissions,
		"window_secs", cfg.Velocity.WindowSecs,
	)

	// Initialize Rule Engine with the assessment history getter
	engine, err := rules.NewEngine(velocitySvc.RecentAssessments, 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		Expiration: cfg.Auth.Expiration,
	})
	if err != nil {
		slog.Error("failed to initialize token service", "error", err)
		os.Exit(1)
	}

	if err := promoteOperators(ctx, repo, cfg.Auth.OperatorEmails); err != nil {
		slog.Error("failed to grant operator roles", "error", err)
		os.Exit(1)
	}

	processor := assess.NewProcessor(engine, logger)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.AsyncWorker {
		asyncWorker = worker.NewWorker(busImpl, repo, processor, worker.Options{
			Cache:    cacheImpl,
			CacheTTL: cfg.Cache.AssessmentTTL,
			Logger:   logger,
		})
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:           repo,
		Cache:          cacheImpl,
		Bus:            busImpl,
		Engine:         engine,
		Processor:      processor,
		Tokens:         tokens,
		Velocity:       velocitySvc,
		AssessmentTTL:  cfg.Cache.AssessmentTTL,
		OperatorEmails: cfg.Auth.OperatorEmails,
		Async:          asyncWorker != nil,
		Version:        Version,
		Logger:         logger,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heartcare is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heartcare shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadRules loads screening rules from the database into the engine.
// An empty database is seeded with the default rule set first.
func loadRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	stored, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rules from database: %w", err)
	}

	if len(stored) == 0 {
		stored = rules.DefaultScreeningRules()
		for _, rule := range stored {
			if err := repo.SaveRuleConfig(ctx, rule); err != nil {
				return fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
			}
		}
		slog.Info("seeded default screening rules", "count", len(stored))
	}

	return engine.LoadRules(stored)
}

// promoteOperators grants the operator role to configured accounts that already exist.
// Accounts created later get it at signup.
func promoteOperators(ctx context.Context, repo domain.Repository, emails []string) error {
	for _, email := range emails {
		user, err := repo.GetUserByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", email, err)
		}
		if user.IsOperator() {
			continue
		}
		if err := repo.SetUserRole(ctx, user.ID, domain.RoleOperator); err != nil {
			return fmt.Errorf("failed to promote %s: %w", email, err)
		}
		slog.Info("operator role granted", "user_id", user.ID)
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  HeartCare - cardiovascular risk assessment")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Profile:  %s\n", cfg.Profile)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score                 - Score a health form")
	fmt.Println("    POST /auth/signup           - Create an account")
	fmt.Println("    POST /auth/login            - Sign in")
	fmt.Println("    POST /assessments           - Score and save an assessment")
	fmt.Println("    POST /assessments/async     - Queue an assessment for scoring")
	fmt.Println("    GET  /assessments           - Assessment history")
	fmt.Println("    GET  /assessments/summary   - History summary and trend")
	fmt.Println("    GET  /recommendations/{id}  - Improvement plan")
	fmt.Println("    GET  /rules                 - List screening rules")
	fmt.Println("    POST /rules/reload          - Hot-reload rules from database")
	fmt.Println("    GET  /metrics               - Prometheus metrics")
	fmt.Println("    GET  /health                - Health check")
	fmt.Println()
}
