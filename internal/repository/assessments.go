package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

const assessmentColumns = `id, user_id, status, parameters, risk_score, risk_level,
	factors, recommendations, screenings, metadata, created_at`

// SaveAssessment stores an assessment with owner isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, userID string, a *domain.Assessment) error {
	if err := requireID("userID", userID); err != nil {
		return err
	}
	if err := requireID("assessment id", a.ID); err != nil {
		return err
	}

	enc, err := encodeAssessment(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO assessments (` + assessmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, userID, a.Status, enc.params, a.RiskScore, string(a.RiskLevel),
		enc.factors, a.Recommendations, enc.screenings, enc.metadata, a.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: assessment %s", ErrConflict, a.ID)
	}
	return err
}

// UpdateAssessment overwrites the computed fields of a stored assessment.
func (r *SQLRepository) UpdateAssessment(ctx context.Context, userID string, a *domain.Assessment) error {
	if err := requireID("userID", userID); err != nil {
		return err
	}

	enc, err := encodeAssessment(a)
	if err != nil {
		return err
	}

	query := `
		UPDATE assessments
		SET status = ?, parameters = ?, risk_score = ?, risk_level = ?, factors = ?,
			recommendations = ?, screenings = ?, metadata = ?
		WHERE user_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		a.Status, enc.params, a.RiskScore, string(a.RiskLevel), enc.factors,
		a.Recommendations, enc.screenings, enc.metadata,
		userID, a.ID,
	)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// GetAssessment retrieves an assessment by ID with owner isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, userID string, assessmentID string) (*domain.Assessment, error) {
	if err := requireID("userID", userID); err != nil {
		return nil, err
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE user_id = ? AND id = ?`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), userID, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssessments returns the user's assessments newest first.
func (r *SQLRepository) ListAssessments(ctx context.Context, userID string, filter domain.AssessmentFilter) ([]*domain.Assessment, error) {
	if err := requireID("userID", userID); err != nil {
		return nil, err
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE user_id = ?`
	args := []any{userID}

	if filter.Level != "" {
		query += ` AND risk_level = ?`
		args = append(args, string(filter.Level))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments := []*domain.Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

// DeleteAssessment removes an assessment with owner isolation.
func (r *SQLRepository) DeleteAssessment(ctx context.Context, userID string, assessmentID string) error {
	if err := requireID("userID", userID); err != nil {
		return err
	}

	query := `DELETE FROM assessments WHERE user_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), userID, assessmentID)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// CountAssessmentsSince counts the user's submissions at or after since.
func (r *SQLRepository) CountAssessmentsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	if err := requireID("userID", userID); err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM assessments WHERE user_id = ? AND created_at >= ?`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), userID, since.UTC()).Scan(&count)
	return count, err
}

type encodedAssessment struct {
	params, factors, screenings, metadata string
}

func encodeAssessment(a *domain.Assessment) (encodedAssessment, error) {
	var enc encodedAssessment

	params, err := json.Marshal(a.Params)
	if err != nil {
		return enc, fmt.Errorf("failed to encode parameters: %w", err)
	}
	factors := a.Factors
	if factors == nil {
		factors = []string{}
	}
	f, err := json.Marshal(factors)
	if err != nil {
		return enc, fmt.Errorf("failed to encode factors: %w", err)
	}
	s, err := json.Marshal(a.Screenings)
	if err != nil {
		return enc, fmt.Errorf("failed to encode screenings: %w", err)
	}
	m, err := json.Marshal(a.Metadata)
	if err != nil {
		return enc, fmt.Errorf("failed to encode metadata: %w", err)
	}

	enc.params = string(params)
	enc.factors = string(f)
	enc.screenings = string(s)
	enc.metadata = string(m)
	return enc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*domain.Assessment, error) {
	var a domain.Assessment
	var level, params, factors, metadata string
	var screenings sql.NullString

	if err := row.Scan(
		&a.ID, &a.UserID, &a.Status, &params, &a.RiskScore, &level,
		&factors, &a.Recommendations, &screenings, &metadata, &a.CreatedAt,
	); err != nil {
		return nil, err
	}

	a.RiskLevel = domain.RiskLevel(level)
	if err := json.Unmarshal([]byte(params), &a.Params); err != nil {
		return nil, fmt.Errorf("failed to parse parameters for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(factors), &a.Factors); err != nil {
		return nil, fmt.Errorf("failed to parse factors for %s: %w", a.ID, err)
	}
	if a.Factors == nil {
		a.Factors = []string{}
	}
	if screenings.Valid && screenings.String != "" && screenings.String != "null" {
		if err := json.Unmarshal([]byte(screenings.String), &a.Screenings); err != nil {
			return nil, fmt.Errorf("failed to parse screenings for %s: %w", a.ID, err)
		}
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata for %s: %w", a.ID, err)
		}
	}

	return &a, nil
}
