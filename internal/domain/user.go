package domain

import "time"

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Account roles. Operators manage the screening rules shared by every user.
const (
	RoleUser     = "user"
	RoleOperator = "operator"
)

// IsOperator reports whether the account may change service-wide settings.
func (u *User) IsOperator() bool {
	return u.Role == RoleOperator
}

// ContactMessage is a message submitted through the contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
