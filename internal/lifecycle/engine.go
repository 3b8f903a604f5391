// Package lifecycle implements the expense-cycle engine: expenses accumulate
// against a room threshold, crossing it freezes spending and notifies every
// member, the admin closes the cycle, and full settlement starts a new one.
//
// Every operation reads and writes inside a single storage transaction that
// first locks the room row, so concurrent requests against the same room are
// applied one after another. Notifications are collected while the
// transaction runs and dispatched only after it commits.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/roomledger/internal/metrics"
	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/internal/storage"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   models.Role
}

// IsAppAdmin reports whether the actor is the superior authority.
func (a Actor) IsAppAdmin() bool {
	return a.Role == models.RoleAppAdmin
}

// Engine runs the lifecycle operations against a Store.
type Engine struct {
	store      storage.Store
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDispatcher sets the post-commit event sink.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithMetrics sets the lifecycle collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine backed by store.
func New(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.Discard()
	}
	return e
}

// ExpenseInput describes a new expense.
type ExpenseInput struct {
	ItemName string
	Amount   decimal.Decimal
	Category string

	// OccurredAt is a Unix timestamp; zero means now.
	OccurredAt int64
}

// RecordedExpense is the outcome of RecordExpense.
type RecordedExpense struct {
	Expense    *models.Expense
	CycleTotal decimal.Decimal
	Threshold  decimal.Decimal

	// Crossed is true only for the expense that reached the threshold.
	Crossed bool
}

// RecordExpense appends an expense to the room's open cycle.
//
// A cycle already at or above its threshold, or frozen, rejects the expense
// with ErrThresholdCrossed. The expense that reaches the threshold freezes the
// cycle, resets every member to UNPAID and, after commit, notifies each member.
// A room without an open cycle gets a fresh one before the expense is applied.
func (e *Engine) RecordExpense(ctx context.Context, actor Actor, roomID string, in ExpenseInput) (*RecordedExpense, error) {
	itemName := strings.TrimSpace(in.ItemName)
	if itemName == "" {
		return nil, ErrMissingItemName
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !isCents(in.Amount) {
		return nil, ErrAmountPrecision
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	createdAt := in.OccurredAt
	if createdAt == 0 {
		createdAt = e.now().Unix()
	}

	var (
		box    outbox
		result *RecordedExpense
	)
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		box.reset()

		room, err := e.lockAdminRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}

		cycle, err := e.openCycle(ctx, tx, room.ID)
		if err != nil {
			return err
		}
		if !cycle.AcceptsExpenses(room.Threshold) {
			return ErrThresholdCrossed
		}

		expense := &models.Expense{
			RoomID:    room.ID,
			CycleID:   cycle.ID,
			ItemName:  itemName,
			Amount:    in.Amount,
			Category:  category,
			AddedByID: actor.UserID,
			CreatedAt: createdAt,
		}
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}

		cycle.TotalAmount = cycle.TotalAmount.Add(in.Amount)
		crossed := cycle.Reached(room.Threshold)
		if crossed {
			cycle.IsFrozen = true
		}
		if err := tx.UpdateCycle(ctx, cycle); err != nil {
			return err
		}

		if crossed {
			if err := tx.SetAllPaymentStatus(ctx, room.ID, models.StatusUnpaid); err != nil {
				return err
			}
			members, err := tx.ListMembers(ctx, room.ID)
			if err != nil {
				return err
			}
			box.add(ThresholdCrossed{
				Room:      *room,
				CycleID:   cycle.ID,
				Total:     cycle.TotalAmount,
				AdminName: adminName(room, members),
				Members:   members,
			})
		}

		result = &RecordedExpense{
			Expense:    expense,
			CycleTotal: cycle.TotalAmount,
			Threshold:  room.Threshold,
			Crossed:    crossed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ExpensesRecorded.Inc()
	if result.Crossed {
		e.metrics.ThresholdCrossings.Inc()
		e.logger.Info("Cycle threshold crossed",
			"room_id", roomID,
			"cycle_id", result.Expense.CycleID,
			"total", result.CycleTotal.String(),
			"threshold", result.Threshold.String(),
		)
	}
	e.dispatch(ctx, box.events)
	return result, nil
}

// CloseOptions controls CloseCycle.
type CloseOptions struct {
	// ResetAll sets every member back to UNPAID as part of the close
	// (the monthly close). Without it the close leaves payment status as is.
	ResetAll bool
}

// CloseCycle finalizes the room's open cycle. The cycle must be frozen or at
// or above the threshold. Closing does not open a new cycle: the next one
// appears on the next expense or on full settlement.
func (e *Engine) CloseCycle(ctx context.Context, actor Actor, roomID string, opts CloseOptions) (*models.Cycle, error) {
	var closed *models.Cycle
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		room, err := e.lockAdminRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}

		cycle, err := tx.GetOpenCycle(ctx, room.ID)
		if err != nil {
			return orNotFound(err, ErrNoActiveCycle, "get open cycle")
		}
		if !cycle.IsFrozen && !cycle.Reached(room.Threshold) {
			return ErrThresholdNotReached
		}

		cycle.IsClosed = true
		cycle.IsFrozen = true
		cycle.ClosedAt = e.now().Unix()
		if err := tx.UpdateCycle(ctx, cycle); err != nil {
			return err
		}

		if opts.ResetAll {
			if err := tx.SetAllPaymentStatus(ctx, room.ID, models.StatusUnpaid); err != nil {
				return err
			}
		}
		closed = cycle
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.CyclesClosed.WithLabelValues(boolLabel(opts.ResetAll)).Inc()
	e.logger.Info("Cycle closed", "room_id", roomID, "cycle_id", closed.ID, "reset_all", opts.ResetAll)
	return closed, nil
}

// PaymentOutcome is the result of MarkMemberPaid.
type PaymentOutcome struct {
	// Settled is true when this payment left no member UNPAID, which resets
	// every member to UNPAID for the next round.
	Settled bool

	// OpenCycle is the room's open cycle after the payment, nil if none.
	OpenCycle *models.Cycle

	// CycleCreated is true when settlement opened a new cycle.
	CycleCreated bool
}

// MarkMemberPaid records that target has paid. When that leaves no member
// UNPAID, a new cycle is opened if the room has none, and every member is
// reset to UNPAID, in the same transaction.
func (e *Engine) MarkMemberPaid(ctx context.Context, actor Actor, roomID, targetUserID string) (*PaymentOutcome, error) {
	outcome := &PaymentOutcome{}
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		*outcome = PaymentOutcome{}

		room, err := e.lockAdminRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}

		member, err := tx.GetMember(ctx, room.ID, targetUserID)
		if err != nil {
			return orNotFound(err, ErrMemberNotFound, "get member")
		}
		if member.PaymentStatus == models.StatusPaid {
			return ErrAlreadyPaid
		}
		if err := tx.SetPaymentStatus(ctx, room.ID, targetUserID, models.StatusPaid); err != nil {
			return err
		}

		unpaid, err := tx.CountMembersByStatus(ctx, room.ID, models.StatusUnpaid)
		if err != nil {
			return err
		}

		cycle, err := tx.GetOpenCycle(ctx, room.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		outcome.OpenCycle = cycle
		if unpaid > 0 {
			return nil
		}

		outcome.Settled = true
		if cycle == nil {
			cycle = &models.Cycle{RoomID: room.ID, TotalAmount: decimal.Zero, CreatedAt: e.now().Unix()}
			if err := tx.CreateCycle(ctx, cycle); err != nil {
				return err
			}
			outcome.OpenCycle = cycle
			outcome.CycleCreated = true
		}
		return tx.SetAllPaymentStatus(ctx, room.ID, models.StatusUnpaid)
	})
	if err != nil {
		return nil, err
	}

	if outcome.Settled {
		e.metrics.CycleRollovers.Inc()
		e.logger.Info("Room fully settled",
			"room_id", roomID,
			"cycle_id", outcome.OpenCycle.ID,
			"cycle_created", outcome.CycleCreated,
		)
	}
	return outcome, nil
}

// CycleSummary is the read model returned by GetCycleSummary.
type CycleSummary struct {
	Room models.Room

	// Cycle is the open cycle, nil between a close and the next cycle.
	Cycle *models.Cycle

	Total   decimal.Decimal
	Members []models.Member
	Paid    int
	Unpaid  int
}

// GetCycleSummary reports the open cycle's total and the members' payment
// status. Readable by members and application admins.
func (e *Engine) GetCycleSummary(ctx context.Context, actor Actor, roomID string) (*CycleSummary, error) {
	room, members, err := e.authorizeReader(ctx, actor, roomID)
	if err != nil {
		return nil, err
	}

	cycles, err := e.store.ListCycles(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	summary := &CycleSummary{Room: *room, Total: decimal.Zero, Members: members}
	for i := range cycles {
		if !cycles[i].IsClosed {
			summary.Cycle = &cycles[i]
			summary.Total = cycles[i].TotalAmount
			break
		}
	}
	for _, m := range members {
		if m.PaymentStatus == models.StatusPaid {
			summary.Paid++
		} else {
			summary.Unpaid++
		}
	}
	return summary, nil
}

// lockAdminRoom locks the room and checks that actor administers it and that
// it is not banned.
func (e *Engine) lockAdminRoom(ctx context.Context, tx storage.Tx, actor Actor, roomID string) (*models.Room, error) {
	room, err := tx.LockRoom(ctx, roomID)
	if err != nil {
		return nil, orNotFound(err, ErrRoomNotFound, "lock room")
	}
	if !room.IsAdmin(actor.UserID) {
		return nil, ErrNotAdmin
	}
	if room.IsBanned {
		return nil, ErrRoomBanned
	}
	return room, nil
}

// openCycle returns the room's open cycle, creating an empty one when the
// room has none.
func (e *Engine) openCycle(ctx context.Context, tx storage.Tx, roomID string) (*models.Cycle, error) {
	cycle, err := tx.GetOpenCycle(ctx, roomID)
	if err == nil {
		return cycle, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	cycle = &models.Cycle{RoomID: roomID, TotalAmount: decimal.Zero, CreatedAt: e.now().Unix()}
	if err := tx.CreateCycle(ctx, cycle); err != nil {
		return nil, err
	}
	e.logger.Debug("Opened cycle for room without one", "room_id", roomID, "cycle_id", cycle.ID)
	return cycle, nil
}

func (e *Engine) dispatch(ctx context.Context, events []Event) {
	if e.dispatcher == nil || len(events) == 0 {
		return
	}
	// The request may be cancelled once the response is written; delivery
	// must still run.
	e.dispatcher.Dispatch(context.WithoutCancel(ctx), events)
}

func adminName(room *models.Room, members []models.Member) string {
	for _, m := range members {
		if m.UserID == room.AdminID {
			return m.DisplayName
		}
	}
	return ""
}

// moneyPlaces is the scale of every stored amount and threshold.
const moneyPlaces = 2

// isCents reports whether d is representable at moneyPlaces without rounding.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(moneyPlaces))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
