// Package storagetest holds a conformance suite run against every storage.Store backend.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/internal/storage"
)

// Run exercises store against the storage.Store contract.
// The store must be empty; Run does not close it.
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("CreateUser and lookups", func(t *testing.T) {
		user := NewUser(t, store, "lookup")

		byEmail, err := store.GetUserByEmail(ctx, user.Email)
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.ID != user.ID {
			t.Errorf("ID mismatch: got %s, want %s", byEmail.ID, user.ID)
		}

		byID, err := store.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if byID.Role != models.RoleUser {
			t.Errorf("Role: got %s, want %s", byID.Role, models.RoleUser)
		}
	})

	t.Run("CreateUser rejects duplicate email", func(t *testing.T) {
		user := NewUser(t, store, "dup")
		again := models.NewUser(user.Email, "Again", "hash")
		if err := store.CreateUser(ctx, again); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("missing rows return ErrNotFound", func(t *testing.T) {
		if _, err := store.GetUserByID(ctx, "nonexistent-id"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetUserByID: expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetRoom(ctx, "nonexistent-id"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetRoom: expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetCycle(ctx, "nonexistent-id"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetCycle: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("room with members and cycle", func(t *testing.T) {
		admin := NewUser(t, store, "admin")
		member := NewUser(t, store, "member")
		room := NewRoom(t, store, admin, "100")

		err := store.InTx(ctx, func(tx storage.Tx) error {
			return tx.AddMember(ctx, &models.Member{RoomID: room.ID, UserID: member.ID})
		})
		if err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}

		got, err := store.GetRoom(ctx, room.ID)
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if !got.Threshold.Equal(decimal.RequireFromString("100")) {
			t.Errorf("Threshold: got %s, want 100", got.Threshold)
		}

		members, err := store.ListMembers(ctx, room.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(members))
		}
		if members[0].UserID != admin.ID || members[0].Email != admin.Email {
			t.Errorf("first member should be the admin with joined details, got %+v", members[0])
		}
		for _, m := range members {
			if m.PaymentStatus != models.StatusUnpaid {
				t.Errorf("member %s: expected UNPAID, got %s", m.UserID, m.PaymentStatus)
			}
		}

		cycles, err := store.ListCycles(ctx, room.ID)
		if err != nil {
			t.Fatalf("ListCycles failed: %v", err)
		}
		if len(cycles) != 1 || cycles[0].IsClosed || !cycles[0].TotalAmount.IsZero() {
			t.Errorf("expected one open empty cycle, got %+v", cycles)
		}
	})

	t.Run("user joins at most one room", func(t *testing.T) {
		adminA := NewUser(t, store, "admin-a")
		adminB := NewUser(t, store, "admin-b")
		NewRoom(t, store, adminA, "50")
		roomB := NewRoom(t, store, adminB, "50")

		err := store.InTx(ctx, func(tx storage.Tx) error {
			return tx.AddMember(ctx, &models.Member{RoomID: roomB.ID, UserID: adminA.ID})
		})
		if !errors.Is(err, storage.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("room titles are unique", func(t *testing.T) {
		admin := NewUser(t, store, "title-a")
		other := NewUser(t, store, "title-b")
		room := NewRoom(t, store, admin, "10")

		err := store.InTx(ctx, func(tx storage.Tx) error {
			return tx.CreateRoom(ctx, &models.Room{Title: room.Title, Threshold: decimal.NewFromInt(5), AdminID: other.ID})
		})
		if !errors.Is(err, storage.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("at most one open cycle per room", func(t *testing.T) {
		admin := NewUser(t, store, "one-open")
		room := NewRoom(t, store, admin, "10")

		err := store.InTx(ctx, func(tx storage.Tx) error {
			return tx.CreateCycle(ctx, &models.Cycle{RoomID: room.ID, TotalAmount: decimal.Zero})
		})
		if !errors.Is(err, storage.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("cycle updates and expenses", func(t *testing.T) {
		admin := NewUser(t, store, "expenses")
		room := NewRoom(t, store, admin, "100")

		var cycleID string
		err := store.InTx(ctx, func(tx storage.Tx) error {
			cycle, err := tx.GetOpenCycle(ctx, room.ID)
			if err != nil {
				return err
			}
			cycleID = cycle.ID
			for _, amount := range []string{"40.50", "9.50"} {
				e := &models.Expense{
					RoomID:    room.ID,
					CycleID:   cycle.ID,
					ItemName:  "Groceries",
					Amount:    decimal.RequireFromString(amount),
					Category:  models.DefaultCategory,
					AddedByID: admin.ID,
				}
				if err := tx.CreateExpense(ctx, e); err != nil {
					return err
				}
				cycle.TotalAmount = cycle.TotalAmount.Add(e.Amount)
			}
			cycle.IsFrozen = true
			cycle.IsClosed = true
			cycle.ClosedAt = 1700000000
			return tx.UpdateCycle(ctx, cycle)
		})
		if err != nil {
			t.Fatalf("transaction failed: %v", err)
		}

		cycle, err := store.GetCycle(ctx, cycleID)
		if err != nil {
			t.Fatalf("GetCycle failed: %v", err)
		}
		if !cycle.TotalAmount.Equal(decimal.NewFromInt(50)) {
			t.Errorf("TotalAmount: got %s, want 50", cycle.TotalAmount)
		}
		if !cycle.IsClosed || !cycle.IsFrozen || cycle.ClosedAt != 1700000000 {
			t.Errorf("expected closed frozen cycle, got %+v", cycle)
		}

		expenses, err := store.ListExpenses(ctx, cycleID)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 2 {
			t.Fatalf("expected 2 expenses, got %d", len(expenses))
		}
		if !expenses[0].Amount.Equal(decimal.RequireFromString("40.50")) {
			t.Errorf("first expense amount: got %s", expenses[0].Amount)
		}

		err = store.InTx(ctx, func(tx storage.Tx) error {
			_, err := tx.GetOpenCycle(ctx, room.ID)
			return err
		})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected no open cycle after close, got %v", err)
		}
	})

	t.Run("failed transaction rolls back", func(t *testing.T) {
		admin := NewUser(t, store, "rollback")
		room := NewRoom(t, store, admin, "100")
		boom := errors.New("boom")

		err := store.InTx(ctx, func(tx storage.Tx) error {
			if err := tx.SetAllPaymentStatus(ctx, room.ID, models.StatusPaid); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		members, err := store.ListMembers(ctx, room.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if members[0].PaymentStatus != models.StatusUnpaid {
			t.Errorf("expected rollback to keep UNPAID, got %s", members[0].PaymentStatus)
		}
	})

	t.Run("payment status counts", func(t *testing.T) {
		admin := NewUser(t, store, "counts")
		member := NewUser(t, store, "counts-member")
		room := NewRoom(t, store, admin, "100")

		err := store.InTx(ctx, func(tx storage.Tx) error {
			if err := tx.AddMember(ctx, &models.Member{RoomID: room.ID, UserID: member.ID}); err != nil {
				return err
			}
			if err := tx.SetPaymentStatus(ctx, room.ID, member.ID, models.StatusPaid); err != nil {
				return err
			}
			unpaid, err := tx.CountMembersByStatus(ctx, room.ID, models.StatusUnpaid)
			if err != nil {
				return err
			}
			if unpaid != 1 {
				t.Errorf("expected 1 unpaid, got %d", unpaid)
			}
			if err := tx.SetPaymentStatus(ctx, room.ID, "nonexistent-id", models.StatusPaid); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("expected ErrNotFound for unknown member, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("transaction failed: %v", err)
		}
	})

	t.Run("notifications", func(t *testing.T) {
		user := NewUser(t, store, "notified")
		for _, content := range []string{"first", "second"} {
			n := &models.Notification{UserID: user.ID, Content: content, Severity: models.SeverityInfo}
			if err := store.CreateNotification(ctx, n); err != nil {
				t.Fatalf("CreateNotification failed: %v", err)
			}
			if n.ID == "" || n.CreatedAt == 0 {
				t.Errorf("expected ID and CreatedAt to be set, got %+v", n)
			}
		}

		list, err := store.ListNotifications(ctx, user.ID)
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(list) != 2 || list[0].Content != "second" {
			t.Errorf("expected newest first, got %+v", list)
		}
	})

	t.Run("DeleteRoom cascades", func(t *testing.T) {
		admin := NewUser(t, store, "cascade")
		member := NewUser(t, store, "cascade-member")
		room := NewRoom(t, store, admin, "10")

		err := store.InTx(ctx, func(tx storage.Tx) error {
			if err := tx.AddMember(ctx, &models.Member{RoomID: room.ID, UserID: member.ID}); err != nil {
				return err
			}
			cycle, err := tx.GetOpenCycle(ctx, room.ID)
			if err != nil {
				return err
			}
			return tx.CreateExpense(ctx, &models.Expense{
				RoomID: room.ID, CycleID: cycle.ID, ItemName: "Rent",
				Amount: decimal.NewFromInt(5), Category: "housing", AddedByID: admin.ID,
			})
		})
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := store.CreateNotification(ctx, &models.Notification{UserID: member.ID, RoomID: room.ID, Content: "hi", Severity: models.SeverityInfo}); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}

		if err := store.InTx(ctx, func(tx storage.Tx) error {
			return tx.DeleteRoom(ctx, room.ID, true)
		}); err != nil {
			t.Fatalf("DeleteRoom failed: %v", err)
		}

		if _, err := store.GetRoom(ctx, room.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected room to be gone, got %v", err)
		}
		if _, err := store.GetUserByID(ctx, admin.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected admin user to be gone, got %v", err)
		}
		if _, err := store.GetUserByID(ctx, member.ID); err != nil {
			t.Errorf("member user should survive: %v", err)
		}
		notifications, err := store.ListNotifications(ctx, member.ID)
		if err != nil {
			t.Fatalf("ListNotifications failed: %v", err)
		}
		if len(notifications) != 0 {
			t.Errorf("expected room notifications to be deleted, got %d", len(notifications))
		}
	})
}

// NewUser persists a user with a unique email derived from label.
func NewUser(t *testing.T, store storage.Store, label string) *models.User {
	t.Helper()
	user := models.NewUser(label+"-"+uuid.NewString()[:8]+"@example.com", label, "hash")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

// NewRoom persists a room administered by admin, with the admin membership
// and an empty open cycle.
func NewRoom(t *testing.T, store storage.Store, admin *models.User, threshold string) *models.Room {
	t.Helper()
	ctx := context.Background()
	room := &models.Room{
		Title:     "Room " + uuid.NewString()[:8],
		Threshold: decimal.RequireFromString(threshold),
		AdminID:   admin.ID,
	}
	err := store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		if err := tx.AddMember(ctx, &models.Member{RoomID: room.ID, UserID: admin.ID}); err != nil {
			return err
		}
		return tx.CreateCycle(ctx, &models.Cycle{RoomID: room.ID, TotalAmount: decimal.Zero})
	})
	if err != nil {
		t.Fatalf("NewRoom failed: %v", err)
	}
	return room
}
