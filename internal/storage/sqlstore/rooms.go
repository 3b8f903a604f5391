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

const (
	roomColumns  = `id, title, threshold, admin_id, is_banned, created_at`
	cycleColumns = `id, room_id, total_amount, is_frozen, is_closed, closed_at, created_at`
)

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return getRoom(ctx, s.db, roomID)
}

// ListMembers retrieves the room's members with their user details.
func (s *Store) ListMembers(ctx context.Context, roomID string) ([]models.Member, error) {
	return listMembers(ctx, s.db, s.dialect, roomID)
}

// GetCycle retrieves a cycle by ID.
func (s *Store) GetCycle(ctx context.Context, cycleID string) (*models.Cycle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM expense_cycles WHERE id = ?`, cycleID)
	cycle, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cycle %s: %w", cycleID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}
	return cycle, nil
}

// ListCycles retrieves every cycle of a room, newest first.
func (s *Store) ListCycles(ctx context.Context, roomID string) ([]models.Cycle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM expense_cycles WHERE room_id = ? ORDER BY created_at DESC, `+s.dialect.SeqColumn+` DESC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []models.Cycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, *cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycles: %w", err)
	}
	return cycles, nil
}

// ListExpenses retrieves a cycle's expenses in insertion order.
func (s *Store) ListExpenses(ctx context.Context, cycleID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, cycle_id, item_name, amount, category, added_by_id, created_at
		 FROM expenses WHERE cycle_id = ? ORDER BY `+s.dialect.SeqColumn,
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.RoomID, &e.CycleID, &e.ItemName, &e.Amount,
			&e.Category, &e.AddedByID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// CreateNotification persists an in-app notification.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().Unix()
	}

	var roomID any
	if n.RoomID != "" {
		roomID = n.RoomID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, room_id, content, severity, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, roomID, n.Content, n.Severity, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListNotifications retrieves a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, room_id, content, severity, is_read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, `+s.dialect.SeqColumn+` DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var roomID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &roomID, &n.Content, &n.Severity, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if roomID.Valid {
			n.RoomID = roomID.String
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notifications, nil
}

func getRoom(ctx context.Context, q queryer, roomID string) (*models.Room, error) {
	return queryRoom(ctx, q, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, roomID)
}

func queryRoom(ctx context.Context, q queryer, query, roomID string) (*models.Room, error) {
	room := &models.Room{}
	err := q.QueryRowContext(ctx, query, roomID).
		Scan(&room.ID, &room.Title, &room.Threshold, &room.AdminID, &room.IsBanned, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("room %s: %w", roomID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func listMembers(ctx context.Context, q queryer, d Dialect, roomID string) ([]models.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT m.room_id, m.user_id, m.payment_status, m.joined_at, u.display_name, u.email
		 FROM room_members m JOIN users u ON u.id = m.user_id
		 WHERE m.room_id = ? ORDER BY m.joined_at, m.`+d.SeqColumn,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.PaymentStatus, &m.JoinedAt, &m.DisplayName, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (*models.Cycle, error) {
	cycle := &models.Cycle{}
	var closedAt sql.NullInt64
	if err := row.Scan(&cycle.ID, &cycle.RoomID, &cycle.TotalAmount, &cycle.IsFrozen,
		&cycle.IsClosed, &closedAt, &cycle.CreatedAt); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		cycle.ClosedAt = closedAt.Int64
	}
	return cycle, nil
}
