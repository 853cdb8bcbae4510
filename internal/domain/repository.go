// Package domain defines the core interfaces and types for HeartCare.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Assessment methods require the owner's userID for strict isolation between accounts.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
	SetUserRole(ctx context.Context, userID string, role string) error

	// Assessment operations
	SaveAssessment(ctx context.Context, userID string, a *Assessment) error
	UpdateAssessment(ctx context.Context, userID string, a *Assessment) error
	GetAssessment(ctx context.Context, userID string, assessmentID string) (*Assessment, error)
	ListAssessments(ctx context.Context, userID string, filter AssessmentFilter) ([]*Assessment, error)
	DeleteAssessment(ctx context.Context, userID string, assessmentID string) error
	CountAssessmentsSince(ctx context.Context, userID string, since time.Time) (int64, error)

	// Screening rule configuration operations
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Contact form
	SaveContactMessage(ctx context.Context, msg *ContactMessage) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
