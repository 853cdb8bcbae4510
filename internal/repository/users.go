package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/lib/pq"
)

const userColumns = `id, email, username, password_hash, role, active, created_at, updated_at`

// CreateUser stores a new account. Email and username must be unique.
func (r *SQLRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if err := requireID("user id", user.ID); err != nil {
		return err
	}
	if user.Email == "" || user.Username == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: email, username and password are required", ErrInvalidInput)
	}

	if _, err := r.GetUserByEmail(ctx, user.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := r.GetUserByUsername(ctx, user.Username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		user.ID, user.Email, user.Username, user.PasswordHash, user.Role,
		boolToInt(user.Active), user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return conflictFor(err)
	}
	return err
}

// GetUserByID retrieves a user by ID.
func (r *SQLRepository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getUser(ctx, "id", userID)
}

// GetUserByEmail retrieves a user by email address.
func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "email", email)
}

// GetUserByUsername retrieves a user by username.
func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, "username", username)
}

func (r *SQLRepository) getUser(ctx context.Context, column, value string) (*domain.User, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, column)
	}

	// column is one of a fixed set chosen by the caller above.
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	var u domain.User
	var active int

	err := r.db.QueryRowContext(ctx, r.rebind(query), value).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
		&active, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Active = active == 1
	return &u, nil
}

// UpdateUser updates the profile fields of an account. The role is not touched.
func (r *SQLRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	if err := requireID("user id", user.ID); err != nil {
		return err
	}

	if other, err := r.GetUserByEmail(ctx, user.Email); err == nil && other.ID != user.ID {
		return ErrEmailTaken
	}
	if other, err := r.GetUserByUsername(ctx, user.Username); err == nil && other.ID != user.ID {
		return ErrUsernameTaken
	}

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = ?, username = ?, active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		user.Email, user.Username, boolToInt(user.Active), user.UpdatedAt, user.ID,
	)
	if isUniqueViolation(err) {
		return conflictFor(err)
	}
	if err != nil {
		return err
	}
	return expectRows(result)
}

// UpdatePassword replaces the stored password hash.
func (r *SQLRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	if err := requireID("user id", userID); err != nil {
		return err
	}
	if passwordHash == "" {
		return fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}

	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// SetUserRole changes an account's role.
func (r *SQLRepository) SetUserRole(ctx context.Context, userID string, role string) error {
	if err := requireID("user id", userID); err != nil {
		return err
	}
	if role != domain.RoleUser && role != domain.RoleOperator {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), role, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// conflictFor names the column behind a unique violation when it can.
func conflictFor(err error) error {
	msg := err.Error()
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		msg = pqErr.Constraint
	}
	switch {
	case strings.Contains(msg, "email"):
		return ErrEmailTaken
	case strings.Contains(msg, "username"):
		return ErrUsernameTaken
	}
	return ErrConflict
}

func expectRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
