package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the system-wide role of a user.
type Role string

const (
	// RoleUser is the default role for registered users.
	RoleUser Role = "USER"
	// RoleAppAdmin is the superior authority that can ban rooms and read any room.
	RoleAppAdmin Role = "APP_ADMIN"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's email address (unique).
	// Used for login and notification emails.
	Email string

	// DisplayName is the user's display name.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// Role is USER unless the account was promoted at registration.
	Role Role

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp when the user account was last updated.
	UpdatedAt int64
}

// NewUser creates a USER-role account with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAppAdmin reports whether the user holds the APP_ADMIN role.
func (u *User) IsAppAdmin() bool {
	return u.Role == RoleAppAdmin
}
