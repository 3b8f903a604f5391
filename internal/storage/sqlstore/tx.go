package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/internal/storage"
)

// sqlTx implements storage.Tx on top of a *sql.Tx.
type sqlTx struct {
	q       queryer
	dialect Dialect
}

var _ storage.Tx = (*sqlTx)(nil)

// CreateRoom inserts a room.
func (t *sqlTx) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt == 0 {
		room.CreatedAt = time.Now().Unix()
	}

	_, err := t.q.ExecContext(ctx,
		"INSERT INTO rooms (id, title, threshold, admin_id, is_banned, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		room.ID, room.Title, room.Threshold, room.AdminID, room.IsBanned, room.CreatedAt,
	)
	if t.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("room title %q: %w", room.Title, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// LockRoom loads the room with the dialect's row lock clause appended.
func (t *sqlTx) LockRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return queryRoom(ctx, t.q, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`+t.dialect.LockClause, roomID)
}

// UpdateRoom persists the room's threshold and ban flag.
func (t *sqlTx) UpdateRoom(ctx context.Context, room *models.Room) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE rooms SET threshold = ?, is_banned = ? WHERE id = ?",
		room.Threshold, room.IsBanned, room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return expectAffected(res, "room", room.ID)
}

// DeleteRoom removes the room and everything it owns, children first.
func (t *sqlTx) DeleteRoom(ctx context.Context, roomID string, deleteAdmin bool) error {
	room, err := getRoom(ctx, t.q, roomID)
	if err != nil {
		return err
	}

	steps := []deleteStep{
		{"members", "DELETE FROM room_members WHERE room_id = ?", []any{roomID}},
		{"expenses", "DELETE FROM expenses WHERE room_id = ?", []any{roomID}},
		{"cycles", "DELETE FROM expense_cycles WHERE room_id = ?", []any{roomID}},
		{"notifications", "DELETE FROM notifications WHERE room_id = ? OR user_id = ?", []any{roomID, room.AdminID}},
		{"room", "DELETE FROM rooms WHERE id = ?", []any{roomID}},
	}
	if deleteAdmin {
		steps = append(steps, deleteStep{"admin user", "DELETE FROM users WHERE id = ?", []any{room.AdminID}})
	}

	for _, step := range steps {
		if _, err := t.q.ExecContext(ctx, step.query, step.args...); err != nil {
			return fmt.Errorf("failed to delete %s: %w", step.what, err)
		}
	}
	return nil
}

// deleteStep is one statement of the room deletion cascade.
type deleteStep struct {
	what  string
	query string
	args  []any
}

// AddMember inserts a membership.
func (t *sqlTx) AddMember(ctx context.Context, member *models.Member) error {
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}
	if member.PaymentStatus == "" {
		member.PaymentStatus = models.StatusUnpaid
	}

	_, err := t.q.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id, payment_status, joined_at) VALUES (?, ?, ?, ?)",
		member.RoomID, member.UserID, member.PaymentStatus, member.JoinedAt,
	)
	if t.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("user %s already in a room: %w", member.UserID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership.
func (t *sqlTx) RemoveMember(ctx context.Context, roomID, userID string) error {
	res, err := t.q.ExecContext(ctx,
		"DELETE FROM room_members WHERE room_id = ? AND user_id = ?",
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return expectAffected(res, "member", userID)
}

// GetMember retrieves a single membership with user details.
func (t *sqlTx) GetMember(ctx context.Context, roomID, userID string) (*models.Member, error) {
	m := &models.Member{}
	err := t.q.QueryRowContext(ctx,
		`SELECT m.room_id, m.user_id, m.payment_status, m.joined_at, u.display_name, u.email
		 FROM room_members m JOIN users u ON u.id = m.user_id
		 WHERE m.room_id = ? AND m.user_id = ?`,
		roomID, userID,
	).Scan(&m.RoomID, &m.UserID, &m.PaymentStatus, &m.JoinedAt, &m.DisplayName, &m.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListMembers retrieves the room's members inside the transaction.
func (t *sqlTx) ListMembers(ctx context.Context, roomID string) ([]models.Member, error) {
	return listMembers(ctx, t.q, t.dialect, roomID)
}

// SetPaymentStatus updates one member's payment status.
func (t *sqlTx) SetPaymentStatus(ctx context.Context, roomID, userID string, status models.PaymentStatus) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE room_members SET payment_status = ? WHERE room_id = ? AND user_id = ?",
		status, roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return expectAffected(res, "member", userID)
}

// SetAllPaymentStatus updates every member of the room.
func (t *sqlTx) SetAllPaymentStatus(ctx context.Context, roomID string, status models.PaymentStatus) error {
	_, err := t.q.ExecContext(ctx,
		"UPDATE room_members SET payment_status = ? WHERE room_id = ?",
		status, roomID,
	)
	if err != nil {
		return fmt.Errorf("failed to reset payment status: %w", err)
	}
	return nil
}

// CountMembersByStatus counts the room's members with the given status.
func (t *sqlTx) CountMembersByStatus(ctx context.Context, roomID string, status models.PaymentStatus) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM room_members WHERE room_id = ? AND payment_status = ?",
		roomID, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

// GetOpenCycle retrieves the room's non-closed cycle.
func (t *sqlTx) GetOpenCycle(ctx context.Context, roomID string) (*models.Cycle, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM expense_cycles WHERE room_id = ? AND is_closed = ?`,
		roomID, false,
	)
	cycle, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("open cycle for room %s: %w", roomID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open cycle: %w", err)
	}
	return cycle, nil
}

// CreateCycle inserts a cycle.
func (t *sqlTx) CreateCycle(ctx context.Context, cycle *models.Cycle) error {
	if cycle.ID == "" {
		cycle.ID = uuid.New().String()
	}
	if cycle.CreatedAt == 0 {
		cycle.CreatedAt = time.Now().Unix()
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO expense_cycles (id, room_id, total_amount, is_frozen, is_closed, closed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cycle.ID, cycle.RoomID, cycle.TotalAmount, cycle.IsFrozen, cycle.IsClosed,
		nullableTime(cycle.ClosedAt), cycle.CreatedAt,
	)
	if t.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("open cycle for room %s: %w", cycle.RoomID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}
	return nil
}

// UpdateCycle persists the running total and lifecycle flags.
func (t *sqlTx) UpdateCycle(ctx context.Context, cycle *models.Cycle) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE expense_cycles SET total_amount = ?, is_frozen = ?, is_closed = ?, closed_at = ? WHERE id = ?",
		cycle.TotalAmount, cycle.IsFrozen, cycle.IsClosed, nullableTime(cycle.ClosedAt), cycle.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}
	return expectAffected(res, "cycle", cycle.ID)
}

// CreateExpense inserts an expense.
func (t *sqlTx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO expenses (id, room_id, cycle_id, item_name, amount, category, added_by_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.RoomID, expense.CycleID, expense.ItemName, expense.Amount,
		expense.Category, expense.AddedByID, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// expectAffected converts a zero-row update or delete into ErrNotFound.
func expectAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return nil
}

func nullableTime(unix int64) any {
	if unix == 0 {
		return nil
	}
	return unix
}
