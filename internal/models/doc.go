// Package models defines the core domain models for Roomledger.
//
// # Entities
//
//   - Room: a group of roommates sharing expenses, with exactly one admin
//   - Member: a user's membership in a room, carrying a payment status flag
//   - Cycle: a billing period accumulating expenses against the room threshold
//   - Expense: an immutable spending record bound to one cycle
//   - User: a registered account
//   - Notification: an in-app message delivered to a user
//
// # Conventions
//
// 1. Relationships are expressed with ID strings, never pointers.
// 2. Timestamps are Unix seconds; zero means "not set".
// 3. Money is always decimal.Decimal, never float64.
package models
