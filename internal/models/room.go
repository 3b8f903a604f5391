package models

import "github.com/shopspring/decimal"

// Room represents a group of roommates sharing expenses.
type Room struct {
	// ID is the unique identifier for the room (UUID format).
	ID string

	// Title is the display name of the room. Globally unique.
	Title string

	// Threshold is the spending limit per cycle. Always positive.
	Threshold decimal.Decimal

	// AdminID is the user who administers the room. The admin is also a member.
	AdminID string

	// IsBanned is set by an APP_ADMIN. Banned rooms reject all writes.
	IsBanned bool

	// CreatedAt is the Unix timestamp when the room was created.
	CreatedAt int64
}

// IsAdmin reports whether userID administers the room.
func (r *Room) IsAdmin(userID string) bool {
	return userID != "" && r.AdminID == userID
}

// PaymentStatus tracks whether a member has paid their dues for the current cycle.
type PaymentStatus string

const (
	StatusPaid   PaymentStatus = "PAID"
	StatusUnpaid PaymentStatus = "UNPAID"
)

// Member is a user's membership in a room.
// (RoomID, UserID) is unique, and a user belongs to at most one room.
type Member struct {
	RoomID        string
	UserID        string
	PaymentStatus PaymentStatus
	JoinedAt      int64

	// DisplayName and Email are joined from the user record on reads.
	DisplayName string
	Email       string
}
