// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/roomledger/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint,
	// such as a duplicate room title or a user joining a second room.
	ErrConflict = errors.New("conflict")
)

// Store defines the interface for Roomledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the lifecycle engine.
//
// Reads on Store run outside any transaction. Every multi-row mutation goes
// through InTx so that it is applied all-or-nothing.
type Store interface {
	UserStore

	// GetRoom retrieves a room by ID. Returns ErrNotFound if it does not exist.
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)

	// ListMembers returns the room's members with user details, ordered by join time.
	ListMembers(ctx context.Context, roomID string) ([]models.Member, error)

	// ListCycles returns every cycle of the room, newest first.
	ListCycles(ctx context.Context, roomID string) ([]models.Cycle, error)

	// GetCycle retrieves a cycle by ID. Returns ErrNotFound if it does not exist.
	GetCycle(ctx context.Context, cycleID string) (*models.Cycle, error)

	// ListExpenses returns the cycle's expenses in insertion order.
	ListExpenses(ctx context.Context, cycleID string) ([]models.Expense, error)

	// CreateNotification persists an in-app notification.
	// The notification.ID field will be populated by the store.
	CreateNotification(ctx context.Context, n *models.Notification) error

	// ListNotifications returns a user's notifications, newest first.
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)

	// InTx runs fn inside a single transaction. The transaction commits if fn
	// returns nil and rolls back otherwise. Implementations serialize
	// concurrent transactions that touch the same room.
	//
	// fn must only use tx; calling back into the Store from fn may deadlock.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}

// UserStore defines user persistence operations.
type UserStore interface {
	// CreateUser persists a new user. Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns ErrNotFound if no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns ErrNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Tx is the transactional view used by the lifecycle engine.
type Tx interface {
	// CreateRoom inserts a room. Returns ErrConflict if the title is taken.
	CreateRoom(ctx context.Context, room *models.Room) error

	// LockRoom loads a room and holds a write lock on it until the
	// transaction ends. Returns ErrNotFound if it does not exist.
	LockRoom(ctx context.Context, roomID string) (*models.Room, error)

	// UpdateRoom persists the room's threshold and ban flag.
	UpdateRoom(ctx context.Context, room *models.Room) error

	// DeleteRoom removes the room and everything it owns, children first.
	// When deleteAdmin is set the admin's user record is removed as well.
	DeleteRoom(ctx context.Context, roomID string, deleteAdmin bool) error

	// AddMember inserts a membership. Returns ErrConflict if the user already
	// belongs to a room.
	AddMember(ctx context.Context, member *models.Member) error

	// RemoveMember deletes a membership. Returns ErrNotFound if absent.
	RemoveMember(ctx context.Context, roomID, userID string) error

	// GetMember returns ErrNotFound if the user is not a member of the room.
	GetMember(ctx context.Context, roomID, userID string) (*models.Member, error)

	// ListMembers returns the room's members with user details.
	ListMembers(ctx context.Context, roomID string) ([]models.Member, error)

	// SetPaymentStatus updates one member. Returns ErrNotFound if absent.
	SetPaymentStatus(ctx context.Context, roomID, userID string, status models.PaymentStatus) error

	// SetAllPaymentStatus updates every member of the room.
	SetAllPaymentStatus(ctx context.Context, roomID string, status models.PaymentStatus) error

	// CountMembersByStatus counts the room's members with the given status.
	CountMembersByStatus(ctx context.Context, roomID string, status models.PaymentStatus) (int, error)

	// GetOpenCycle returns the room's non-closed cycle, or ErrNotFound.
	GetOpenCycle(ctx context.Context, roomID string) (*models.Cycle, error)

	// CreateCycle inserts a cycle. The cycle.ID field will be populated.
	// Returns ErrConflict if the room already has an open cycle.
	CreateCycle(ctx context.Context, cycle *models.Cycle) error

	// UpdateCycle persists the running total and the frozen/closed flags.
	UpdateCycle(ctx context.Context, cycle *models.Cycle) error

	// CreateExpense inserts an expense. The expense.ID field will be populated.
	CreateExpense(ctx context.Context, expense *models.Expense) error
}
