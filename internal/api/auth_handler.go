package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/heartcare-ai/heartcare/internal/auth"
	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/repository"
)

// Auth response messages.
const (
	MsgEmailTaken        = "Email already registered"
	MsgUsernameTaken     = "Username already taken"
	MsgIncorrectLogin    = "Incorrect email or password"
	MsgIncorrectPassword = "Current password is incorrect"
	MsgLoggedOut         = "Successfully logged out"
	MsgPasswordChanged   = "Password updated successfully"
	MsgOperatorRequired  = "Operator access required"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
)

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the body of PUT /auth/me. Empty fields are kept.
type UpdateProfileRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// ChangePasswordRequest is the body of POST /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse is returned by signup and login.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

func userResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Signup creates an account and signs the new user in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if !validEmail(email) {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if msg := checkUsername(username); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
	}
	if h.operators[email] {
		user.Role = domain.RoleOperator
	}
	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		if h.writeConflict(w, err) {
			return
		}
		h.logger.Error("failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	h.writeToken(w, http.StatusCreated, user)
}

// Login verifies credentials and returns an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.logger.Error("failed to look up user", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if user == nil || !user.Active || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, MsgIncorrectLogin)
		return
	}

	h.writeToken(w, http.StatusOK, user)
}

// Logout acknowledges a sign-out. Tokens are stateless, so the client drops its copy.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": MsgLoggedOut})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

// UpdateMe changes the authenticated user's email or username.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if v := normalizeEmail(req.Email); v != "" {
		if !validEmail(v) {
			writeError(w, http.StatusBadRequest, "a valid email is required")
			return
		}
		user.Email = v
	}
	if v := strings.TrimSpace(req.Username); v != "" {
		if msg := checkUsername(v); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		user.Username = v
	}

	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		if h.writeConflict(w, err) {
			return
		}
		h.logger.Error("failed to update user", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, userResponse(user))
}

// ChangePassword replaces the password after checking the current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if auth.CheckPassword(user.PasswordHash, req.CurrentPassword) != nil {
		writeError(w, http.StatusBadRequest, MsgIncorrectPassword)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if err := h.repo.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		h.logger.Error("failed to update password", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": MsgPasswordChanged})
}

// RequireOperator rejects accounts without the operator role with 403.
// The role is read from the repository on every request.
func (h *Handler) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.currentUser(w, r)
		if !ok {
			return
		}
		if !user.IsOperator() {
			h.logger.Warn("operator route denied", "user_id", user.ID, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, MsgOperatorRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser loads the account behind the request token.
// A token for a deleted or disabled account is treated as invalid.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, err := h.repo.GetUserByID(r.Context(), GetUserID(r.Context()))
	if err == nil && user.Active {
		return user, true
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.logger.Error("failed to load user", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return nil, false
	}
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, MsgInvalidCredentials)
	return nil, false
}

func (h *Handler) writeToken(w http.ResponseWriter, status int, user *domain.User) {
	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, status, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.Expiration().Seconds()),
		User:        userResponse(user),
	})
}

// writeConflict maps unique-constraint errors to 409.
func (h *Handler) writeConflict(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		writeError(w, http.StatusConflict, MsgEmailTaken)
	case errors.Is(err, repository.ErrUsernameTaken):
		writeError(w, http.StatusConflict, MsgUsernameTaken)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "account already exists")
	default:
		return false
	}
	return true
}

func checkUsername(s string) string {
	if len(s) < minUsernameLength || len(s) > maxUsernameLength {
		return "username must be between 3 and 50 characters"
	}
	if strings.ContainsAny(s, " \t\n@") {
		return "username must not contain spaces or @"
	}
	return ""
}
