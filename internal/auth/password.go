package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrMissingIdentity    = errors.New("email and display name are required")
	ErrInvalidEmail       = errors.New("email address is not valid")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage     storage.UserStore
	appAdmins   map[string]bool
	hashingCost int
}

// PasswordOption configures a PasswordAuthenticator.
type PasswordOption func(*PasswordAuthenticator)

// WithAppAdmins promotes the listed emails to APP_ADMIN when they register.
func WithAppAdmins(emails []string) PasswordOption {
	return func(a *PasswordAuthenticator) {
		for _, e := range emails {
			a.appAdmins[normalizeEmail(e)] = true
		}
	}
}

// WithHashingCost overrides the bcrypt cost, for tests.
func WithHashingCost(cost int) PasswordOption {
	return func(a *PasswordAuthenticator) { a.hashingCost = cost }
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(store storage.UserStore, opts ...PasswordOption) *PasswordAuthenticator {
	a := &PasswordAuthenticator{
		storage:     store,
		appAdmins:   make(map[string]bool),
		hashingCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new user account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential string) (*models.User, error) {
	email = normalizeEmail(email)
	displayName = strings.TrimSpace(displayName)
	if email == "" || displayName == "" {
		return nil, ErrMissingIdentity
	}
	if !isBareAddress(email) {
		return nil, ErrInvalidEmail
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(credential), a.hashingCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(email, displayName, string(hashedPassword))
	if a.appAdmins[email] {
		user.Role = models.RoleAppAdmin
	}

	if err := a.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	user, err := a.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isBareAddress reports whether email is a plain addr-spec, with no display
// name or angle brackets.
func isBareAddress(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Name == "" && addr.Address == email
}
