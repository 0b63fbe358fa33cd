package users

import (
	"fmt"
	"time"

	"github.com/harvest-erp/harvest/internal/shared"
)

// User represents a user account for management. PasswordHash never leaves
// the service layer.
type User struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         shared.Role `json:"role"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Principal returns the identity carried by the user's sessions.
func (u User) Principal() shared.Principal {
	return shared.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// CreateRequest is the payload of POST /users.
type CreateRequest struct {
	Name     string      `json:"name" validate:"required,max=100"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     shared.Role `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

// UpdateRequest is the payload of PUT /users/{id}; nil fields are unchanged.
type UpdateRequest struct {
	Name     *string      `json:"name" validate:"omitempty,max=100"`
	Email    *string      `json:"email" validate:"omitempty,email"`
	Password *string      `json:"password" validate:"omitempty,min=8,max=72"`
	Role     *shared.Role `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = fmt.Errorf("user %w", shared.ErrNotFound)
	// ErrEmailTaken indicates another account uses the email.
	ErrEmailTaken = fmt.Errorf("email already registered: %w", shared.ErrConflict)
	// ErrInUse indicates records still name the user as their author.
	ErrInUse = fmt.Errorf("user is referenced: %w", shared.ErrInUse)
	// ErrLastAdmin indicates the change would leave no ADMIN account.
	ErrLastAdmin = fmt.Errorf("at least one admin must remain: %w", shared.ErrAdminFloor)
)
