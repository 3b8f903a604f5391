package models

import "github.com/shopspring/decimal"

// DefaultCategory is used when an expense is recorded without a category.
const DefaultCategory = "general"

// Expense is an immutable spending record.
// It always belongs to the cycle that was open when it was recorded.
type Expense struct {
	ID        string
	RoomID    string
	CycleID   string
	ItemName  string
	Amount    decimal.Decimal
	Category  string
	AddedByID string

	// CreatedAt is the Unix timestamp of the expense, taken from the caller
	// when provided.
	CreatedAt int64
}
