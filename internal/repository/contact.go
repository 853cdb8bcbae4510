package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// SaveContactMessage stores a contact form submission.
func (r *SQLRepository) SaveContactMessage(ctx context.Context, msg *domain.ContactMessage) error {
	if err := requireID("message id", msg.ID); err != nil {
		return err
	}
	if msg.Email == "" || msg.Message == "" {
		return fmt.Errorf("%w: email and message are required", ErrInvalidInput)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO contact_messages (id, name, email, subject, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		msg.ID, msg.Name, msg.Email, msg.Subject, msg.Message, msg.CreatedAt,
	)
	return err
}
