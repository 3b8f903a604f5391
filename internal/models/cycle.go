package models

import "github.com/shopspring/decimal"

// Cycle is a billing period accumulating expenses against the room threshold.
//
// A room has at most one cycle with IsClosed == false. IsFrozen and IsClosed
// only ever move from false to true.
type Cycle struct {
	ID     string
	RoomID string

	// TotalAmount is the running sum of the cycle's expenses.
	TotalAmount decimal.Decimal

	// IsFrozen marks that the threshold was reached and spending is gated.
	IsFrozen bool

	// IsClosed marks the cycle as finalized history.
	IsClosed bool

	// ClosedAt is the Unix timestamp when the cycle closed, zero while open.
	ClosedAt int64

	CreatedAt int64
}

// Reached reports whether the running total is at or above threshold.
func (c *Cycle) Reached(threshold decimal.Decimal) bool {
	return c.TotalAmount.GreaterThanOrEqual(threshold)
}

// AcceptsExpenses reports whether new spending may be recorded against the cycle.
func (c *Cycle) AcceptsExpenses(threshold decimal.Decimal) bool {
	return !c.IsClosed && !c.IsFrozen && !c.Reached(threshold)
}
