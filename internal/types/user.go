package types

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted identity record. Email is the identity key; there
// is no username.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Exclude from JSON responses
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthenticatedUser is the caller identity resolved from a bearer token and
// carried through the request context into every resource operation.
type AuthenticatedUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// RegisterUserRequest is the POST /user/create payload.
type RegisterUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// TokenRequest is the POST /user/token payload.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the opaque bearer token back to the caller.
type TokenResponse struct {
	Token string `json:"token"`
}

// UserResponse is the public shape of a user record.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// UpdateProfileParams defines the fields allowed for profile updates.
// Pointers distinguish "not provided" from zero values for PATCH.
type UpdateProfileParams struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}
