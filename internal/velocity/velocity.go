// Package velocity limits and counts assessment submissions per user.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// ErrLimitExceeded is returned when a user has used up the submission window.
var ErrLimitExceeded = errors.New("submission limit exceeded")

const counterKey = "submissions"

// Service enforces the submission limit and answers history counts.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
	cfg   domain.VelocityConfig
	now   func() time.Time
}

// NewService creates a new velocity service. cache may be nil, in which
// case the limit is computed from stored assessments.
func NewService(repo domain.Repository, cache domain.Cache, cfg domain.VelocityConfig) *Service {
	if cfg.WindowSecs <= 0 {
		cfg.WindowSecs = 3600
	}
	return &Service{
		repo:  repo,
		cache: cache,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Enabled reports whether a limit is configured.
func (s *Service) Enabled() bool {
	return s.cfg.MaxSubmissions > 0
}

func (s *Service) window() time.Duration {
	return time.Duration(s.cfg.WindowSecs) * time.Second
}

// Allow records one submission for userID and returns the count in the
// current window. It returns ErrLimitExceeded once the count passes MaxSubmissions.
func (s *Service) Allow(ctx context.Context, userID string) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	if userID == "" {
		return 0, fmt.Errorf("userID is required")
	}

	if s.cache != nil {
		n, err := s.cache.IncrementCounter(ctx, userID, counterKey, s.window())
		if err == nil {
			if n > int64(s.cfg.MaxSubmissions) {
				return n, fmt.Errorf("%w: %d submissions in %ds", ErrLimitExceeded, n, s.cfg.WindowSecs)
			}
			return n, nil
		}
		if s.repo == nil {
			return 0, fmt.Errorf("failed to increment submission counter: %w", err)
		}
	}

	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	// The stored count does not include the submission being checked.
	n, err := s.repo.CountAssessmentsSince(ctx, userID, s.now().Add(-s.window()))
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	n++
	if n > int64(s.cfg.MaxSubmissions) {
		return n, fmt.Errorf("%w: %d submissions in %ds", ErrLimitExceeded, n, s.cfg.WindowSecs)
	}
	return n, nil
}

// RetryAfter is the window length, the longest a limited user has to wait.
func (s *Service) RetryAfter() time.Duration {
	return s.window()
}

// RecentAssessments returns how many assessments userID stored within
// the last windowSecs. It has the signature the rules engine expects.
func (s *Service) RecentAssessments(ctx context.Context, userID string, windowSecs int) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID is required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := s.now().Add(-time.Duration(windowSecs) * time.Second)
	return s.repo.CountAssessmentsSince(ctx, userID, since)
}
