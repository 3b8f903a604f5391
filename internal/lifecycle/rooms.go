package lifecycle

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/internal/storage"
)

// RoomInput describes a new room.
type RoomInput struct {
	Title     string
	Threshold decimal.Decimal
}

// RoomDetails is a room together with its members.
type RoomDetails struct {
	Room    models.Room
	Members []models.Member
}

// CreateRoom creates a room administered by actor, the admin's membership and
// the first open cycle, atomically.
func (e *Engine) CreateRoom(ctx context.Context, actor Actor, in RoomInput) (*models.Room, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}
	if strings.IndexFunc(title, unicode.IsControl) >= 0 {
		return nil, ErrInvalidTitle
	}
	if err := validateThreshold(in.Threshold); err != nil {
		return nil, err
	}

	now := e.now().Unix()
	room := &models.Room{
		Title:     title,
		Threshold: in.Threshold,
		AdminID:   actor.UserID,
		CreatedAt: now,
	}
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrTitleTaken
			}
			return err
		}
		admin := &models.Member{RoomID: room.ID, UserID: actor.UserID, PaymentStatus: models.StatusUnpaid, JoinedAt: now}
		if err := tx.AddMember(ctx, admin); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrAlreadyInRoom
			}
			return err
		}
		return tx.CreateCycle(ctx, &models.Cycle{RoomID: room.ID, TotalAmount: decimal.Zero, CreatedAt: now})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Room created", "room_id", room.ID, "admin_id", actor.UserID)
	return room, nil
}

// GetRoom returns the room and its members. Readable by members and
// application admins.
func (e *Engine) GetRoom(ctx context.Context, actor Actor, roomID string) (*RoomDetails, error) {
	room, members, err := e.authorizeReader(ctx, actor, roomID)
	if err != nil {
		return nil, err
	}
	return &RoomDetails{Room: *room, Members: members}, nil
}

// UpdateThreshold changes the room's spending limit. A frozen cycle stays
// frozen even if the new threshold is above its total.
func (e *Engine) UpdateThreshold(ctx context.Context, actor Actor, roomID string, threshold decimal.Decimal) (*models.Room, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	var room *models.Room
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		room, err = e.lockAdminRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}
		room.Threshold = threshold
		return tx.UpdateRoom(ctx, room)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// AddMember adds the user registered under email to the room as UNPAID.
func (e *Engine) AddMember(ctx context.Context, actor Actor, roomID, email string) (*models.Member, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, orNotFound(err, ErrUserNotFound, "get user")
	}

	var member *models.Member
	err = e.store.InTx(ctx, func(tx storage.Tx) error {
		room, err := e.lockAdminRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}
		m := &models.Member{RoomID: room.ID, UserID: user.ID, PaymentStatus: models.StatusUnpaid, JoinedAt: e.now().Unix()}
		if err := tx.AddMember(ctx, m); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrAlreadyInRoom
			}
			return err
		}
		member, err = tx.GetMember(ctx, room.ID, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Member added", "room_id", roomID, "user_id", user.ID)
	return member, nil
}

// RemoveMember removes a non-admin member from the room.
func (e *Engine) RemoveMember(ctx context.Context, actor Actor, roomID, userID string) error {
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		room, err := e.lockAdminRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}
		if userID == room.AdminID {
			return ErrCannotRemoveAdmin
		}
		if err := tx.RemoveMember(ctx, room.ID, userID); err != nil {
			return orNotFound(err, ErrMemberNotFound, "remove member")
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Member removed", "room_id", roomID, "user_id", userID)
	return nil
}

// BanRoom sets or clears the room's ban flag. Application admins only.
func (e *Engine) BanRoom(ctx context.Context, actor Actor, roomID string, banned bool) error {
	if !actor.IsAppAdmin() {
		return ErrNotAppAdmin
	}
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return orNotFound(err, ErrRoomNotFound, "lock room")
		}
		room.IsBanned = banned
		return tx.UpdateRoom(ctx, room)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Room ban updated", "room_id", roomID, "banned", banned, "actor_id", actor.UserID)
	return nil
}

// DeleteRoom removes the room with its members, expenses, cycles and
// notifications. With deleteAdminAccount the admin's user record goes too.
// Allowed for the room admin and application admins.
func (e *Engine) DeleteRoom(ctx context.Context, actor Actor, roomID string, deleteAdminAccount bool) error {
	err := e.store.InTx(ctx, func(tx storage.Tx) error {
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return orNotFound(err, ErrRoomNotFound, "lock room")
		}
		if !room.IsAdmin(actor.UserID) && !actor.IsAppAdmin() {
			return ErrNotAdmin
		}
		return tx.DeleteRoom(ctx, room.ID, deleteAdminAccount)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Room deleted", "room_id", roomID, "actor_id", actor.UserID, "admin_deleted", deleteAdminAccount)
	return nil
}

// ListCycles returns the room's cycles, newest first.
func (e *Engine) ListCycles(ctx context.Context, actor Actor, roomID string) ([]models.Cycle, error) {
	room, _, err := e.authorizeReader(ctx, actor, roomID)
	if err != nil {
		return nil, err
	}
	return e.store.ListCycles(ctx, room.ID)
}

// ListExpenses returns the expenses of cycleID, or of the open cycle when
// cycleID is empty.
func (e *Engine) ListExpenses(ctx context.Context, actor Actor, roomID, cycleID string) (*models.Cycle, []models.Expense, error) {
	cycle, err := e.readableCycle(ctx, actor, roomID, cycleID)
	if err != nil {
		return nil, nil, err
	}
	expenses, err := e.store.ListExpenses(ctx, cycle.ID)
	if err != nil {
		return nil, nil, err
	}
	return cycle, expenses, nil
}

// CycleReport gathers everything needed to export one cycle.
type CycleReport struct {
	Room     models.Room
	Cycle    models.Cycle
	Expenses []models.Expense
	Members  []models.Member
}

// BuildCycleReport collects the cycle (or the open cycle when cycleID is
// empty) with its expenses and the room's members.
func (e *Engine) BuildCycleReport(ctx context.Context, actor Actor, roomID, cycleID string) (*CycleReport, error) {
	cycle, err := e.readableCycle(ctx, actor, roomID, cycleID)
	if err != nil {
		return nil, err
	}
	room, err := e.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, orNotFound(err, ErrRoomNotFound, "get room")
	}
	expenses, err := e.store.ListExpenses(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &CycleReport{Room: *room, Cycle: *cycle, Expenses: expenses, Members: members}, nil
}

// ListNotifications returns the actor's in-app notifications, newest first.
func (e *Engine) ListNotifications(ctx context.Context, actor Actor) ([]models.Notification, error) {
	return e.store.ListNotifications(ctx, actor.UserID)
}

// readableCycle resolves cycleID (or the open cycle) within a room the actor
// may read.
func (e *Engine) readableCycle(ctx context.Context, actor Actor, roomID, cycleID string) (*models.Cycle, error) {
	room, _, err := e.authorizeReader(ctx, actor, roomID)
	if err != nil {
		return nil, err
	}

	if cycleID == "" {
		cycles, err := e.store.ListCycles(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		for i := range cycles {
			if !cycles[i].IsClosed {
				return &cycles[i], nil
			}
		}
		return nil, ErrNoActiveCycle
	}

	cycle, err := e.store.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, orNotFound(err, ErrCycleNotFound, "get cycle")
	}
	if cycle.RoomID != room.ID {
		return nil, ErrCycleNotFound
	}
	return cycle, nil
}

// authorizeReader loads the room and its members and checks that actor is a
// member or an application admin.
func (e *Engine) authorizeReader(ctx context.Context, actor Actor, roomID string) (*models.Room, []models.Member, error) {
	room, err := e.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, orNotFound(err, ErrRoomNotFound, "get room")
	}
	members, err := e.store.ListMembers(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}
	if actor.IsAppAdmin() {
		return room, members, nil
	}
	for _, m := range members {
		if m.UserID == actor.UserID {
			return room, members, nil
		}
	}
	return nil, nil, ErrNotMember
}

func validateThreshold(threshold decimal.Decimal) error {
	if !threshold.IsPositive() {
		return ErrInvalidThreshold
	}
	if !isCents(threshold) {
		return ErrThresholdPrecision
	}
	return nil
}
