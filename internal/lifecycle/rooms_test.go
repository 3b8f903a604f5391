package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/roomledger/internal/lifecycle"
	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/internal/storage"
	"github.com/mmynk/roomledger/internal/storage/storagetest"
)

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("creates admin membership and open cycle", func(t *testing.T) {
		f := newFixture(t, "250.50")
		details, err := f.engine.GetRoom(ctx, f.admin, f.room.ID)
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if details.Room.AdminID != f.admin.UserID || !details.Room.Threshold.Equal(dec("250.50")) {
			t.Errorf("room = %+v", details.Room)
		}
		if len(details.Members) != 2 {
			t.Errorf("members = %d, want 2", len(details.Members))
		}
		if open := f.openCycles(t); len(open) != 1 || !open[0].TotalAmount.IsZero() {
			t.Errorf("open cycles = %+v, want one empty cycle", open)
		}
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, "100")
		carol := storagetest.NewUser(t, f.store, "carol")
		actor := lifecycle.Actor{UserID: carol.ID}

		_, err := f.engine.CreateRoom(ctx, actor, lifecycle.RoomInput{Title: " ", Threshold: dec("10")})
		expectKind(t, err, lifecycle.KindValidation)
		_, err = f.engine.CreateRoom(ctx, actor, lifecycle.RoomInput{Title: "Den", Threshold: dec("0")})
		expectKind(t, err, lifecycle.KindValidation)

		_, err = f.engine.CreateRoom(ctx, actor, lifecycle.RoomInput{Title: "Den\r\nBcc: eve@example.com", Threshold: dec("10")})
		if !errors.Is(err, lifecycle.ErrInvalidTitle) {
			t.Errorf("control characters err = %v, want ErrInvalidTitle", err)
		}
		_, err = f.engine.CreateRoom(ctx, actor, lifecycle.RoomInput{Title: "Den", Threshold: dec("10.005")})
		if !errors.Is(err, lifecycle.ErrThresholdPrecision) {
			t.Errorf("sub-cent threshold err = %v, want ErrThresholdPrecision", err)
		}
		_, err = f.engine.UpdateThreshold(ctx, f.admin, f.room.ID, dec("99.999"))
		if !errors.Is(err, lifecycle.ErrThresholdPrecision) {
			t.Errorf("UpdateThreshold err = %v, want ErrThresholdPrecision", err)
		}
		if _, err := f.engine.UpdateThreshold(ctx, f.admin, f.room.ID, dec("99.90")); err != nil {
			t.Errorf("UpdateThreshold(99.90) failed: %v", err)
		}
	})

	t.Run("title taken", func(t *testing.T) {
		f := newFixture(t, "100")
		carol := storagetest.NewUser(t, f.store, "carol")
		_, err := f.engine.CreateRoom(ctx, lifecycle.Actor{UserID: carol.ID}, lifecycle.RoomInput{Title: "Flat 4B", Threshold: dec("10")})
		if !errors.Is(err, lifecycle.ErrTitleTaken) {
			t.Errorf("err = %v, want ErrTitleTaken", err)
		}
		expectKind(t, err, lifecycle.KindConflict)
	})

	t.Run("member of another room", func(t *testing.T) {
		f := newFixture(t, "100")
		_, err := f.engine.CreateRoom(ctx, f.member, lifecycle.RoomInput{Title: "Second", Threshold: dec("10")})
		if !errors.Is(err, lifecycle.ErrAlreadyInRoom) {
			t.Errorf("err = %v, want ErrAlreadyInRoom", err)
		}
		carol := storagetest.NewUser(t, f.store, "carol")
		if _, err := f.engine.CreateRoom(ctx, lifecycle.Actor{UserID: carol.ID}, lifecycle.RoomInput{Title: "Second", Threshold: dec("10")}); err != nil {
			t.Errorf("failed create must not leave its room behind: %v", err)
		}
	})
}

func TestMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("add by unknown email", func(t *testing.T) {
		f := newFixture(t, "100")
		_, err := f.engine.AddMember(ctx, f.admin, f.room.ID, "nobody@example.com")
		if !errors.Is(err, lifecycle.ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("add twice", func(t *testing.T) {
		f := newFixture(t, "100")
		bob, err := f.store.GetUserByID(ctx, f.member.UserID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		_, err = f.engine.AddMember(ctx, f.admin, f.room.ID, bob.Email)
		if !errors.Is(err, lifecycle.ErrAlreadyInRoom) {
			t.Errorf("err = %v, want ErrAlreadyInRoom", err)
		}
	})

	t.Run("added member starts unpaid", func(t *testing.T) {
		f := newFixture(t, "100")
		carol := storagetest.NewUser(t, f.store, "carol")
		m, err := f.engine.AddMember(ctx, f.admin, f.room.ID, carol.Email)
		if err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
		if m.PaymentStatus != models.StatusUnpaid || m.DisplayName != "carol" {
			t.Errorf("member = %+v", m)
		}
	})

	t.Run("only admin adds", func(t *testing.T) {
		f := newFixture(t, "100")
		carol := storagetest.NewUser(t, f.store, "carol")
		_, err := f.engine.AddMember(ctx, f.member, f.room.ID, carol.Email)
		expectKind(t, err, lifecycle.KindForbidden)
	})

	t.Run("remove", func(t *testing.T) {
		f := newFixture(t, "100")
		if err := f.engine.RemoveMember(ctx, f.admin, f.room.ID, f.member.UserID); err != nil {
			t.Fatalf("RemoveMember failed: %v", err)
		}
		details, err := f.engine.GetRoom(ctx, f.admin, f.room.ID)
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if len(details.Members) != 1 {
			t.Errorf("members = %d, want 1", len(details.Members))
		}
		if err := f.engine.RemoveMember(ctx, f.admin, f.room.ID, f.member.UserID); !errors.Is(err, lifecycle.ErrMemberNotFound) {
			t.Errorf("second remove err = %v, want ErrMemberNotFound", err)
		}
		if _, err := f.engine.GetRoom(ctx, f.member, f.room.ID); !errors.Is(err, lifecycle.ErrNotMember) {
			t.Errorf("removed member read err = %v, want ErrNotMember", err)
		}
	})

	t.Run("admin cannot be removed", func(t *testing.T) {
		f := newFixture(t, "100")
		err := f.engine.RemoveMember(ctx, f.admin, f.room.ID, f.admin.UserID)
		if !errors.Is(err, lifecycle.ErrCannotRemoveAdmin) {
			t.Errorf("err = %v, want ErrCannotRemoveAdmin", err)
		}
	})
}

func TestBanAndDeleteRoom(t *testing.T) {
	ctx := context.Background()
	appAdmin := lifecycle.Actor{UserID: "ops", Role: models.RoleAppAdmin}

	t.Run("ban requires app admin", func(t *testing.T) {
		f := newFixture(t, "100")
		err := f.engine.BanRoom(ctx, f.admin, f.room.ID, true)
		if !errors.Is(err, lifecycle.ErrNotAppAdmin) {
			t.Errorf("err = %v, want ErrNotAppAdmin", err)
		}
	})

	t.Run("unban restores writes", func(t *testing.T) {
		f := newFixture(t, "100")
		if err := f.engine.BanRoom(ctx, appAdmin, f.room.ID, true); err != nil {
			t.Fatalf("BanRoom failed: %v", err)
		}
		if _, err := f.engine.UpdateThreshold(ctx, f.admin, f.room.ID, dec("50")); !errors.Is(err, lifecycle.ErrRoomBanned) {
			t.Errorf("err = %v, want ErrRoomBanned", err)
		}
		if err := f.engine.BanRoom(ctx, appAdmin, f.room.ID, false); err != nil {
			t.Fatalf("BanRoom(false) failed: %v", err)
		}
		room, err := f.engine.UpdateThreshold(ctx, f.admin, f.room.ID, dec("50"))
		if err != nil {
			t.Fatalf("UpdateThreshold failed: %v", err)
		}
		if !room.Threshold.Equal(dec("50")) {
			t.Errorf("threshold = %s, want 50", room.Threshold)
		}
	})

	t.Run("delete by member forbidden", func(t *testing.T) {
		f := newFixture(t, "100")
		err := f.engine.DeleteRoom(ctx, f.member, f.room.ID, false)
		expectKind(t, err, lifecycle.KindForbidden)
	})

	t.Run("delete cascades", func(t *testing.T) {
		f := newFixture(t, "100")
		f.record(t, "100")
		if err := f.engine.DeleteRoom(ctx, f.admin, f.room.ID, true); err != nil {
			t.Fatalf("DeleteRoom failed: %v", err)
		}
		if _, err := f.engine.GetRoom(ctx, f.admin, f.room.ID); !errors.Is(err, lifecycle.ErrRoomNotFound) {
			t.Errorf("err = %v, want ErrRoomNotFound", err)
		}
		if _, err := f.store.GetUserByID(ctx, f.admin.UserID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("admin account should be deleted, err = %v", err)
		}
		if _, err := f.store.GetUserByID(ctx, f.member.UserID); err != nil {
			t.Errorf("member account should survive: %v", err)
		}
		// The former member can start a room of their own.
		if _, err := f.engine.CreateRoom(ctx, f.member, lifecycle.RoomInput{Title: "Fresh", Threshold: dec("10")}); err != nil {
			t.Errorf("CreateRoom after delete failed: %v", err)
		}
	})

	t.Run("app admin deletes", func(t *testing.T) {
		f := newFixture(t, "100")
		if err := f.engine.DeleteRoom(ctx, appAdmin, f.room.ID, false); err != nil {
			t.Fatalf("DeleteRoom failed: %v", err)
		}
		if _, err := f.store.GetUserByID(ctx, f.admin.UserID); err != nil {
			t.Errorf("admin account should survive: %v", err)
		}
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "100")
	f.record(t, "60")
	f.record(t, "40")
	if _, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{}); err != nil {
		t.Fatalf("CloseCycle failed: %v", err)
	}
	f.record(t, "5")

	cycles, err := f.engine.ListCycles(ctx, f.member, f.room.ID)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("cycles = %d, want 2", len(cycles))
	}
	var closed models.Cycle
	for _, c := range cycles {
		if c.IsClosed {
			closed = c
		}
	}
	if closed.ID == "" {
		t.Fatal("expected a closed cycle in history")
	}

	t.Run("expenses of closed cycle", func(t *testing.T) {
		cycle, expenses, err := f.engine.ListExpenses(ctx, f.member, f.room.ID, closed.ID)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if cycle.ID != closed.ID || len(expenses) != 2 {
			t.Errorf("cycle %s with %d expenses", cycle.ID, len(expenses))
		}
		if !expenses[0].Amount.Equal(dec("60")) {
			t.Errorf("first expense = %s, want insertion order", expenses[0].Amount)
		}
	})

	t.Run("expenses of open cycle by default", func(t *testing.T) {
		_, expenses, err := f.engine.ListExpenses(ctx, f.member, f.room.ID, "")
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 1 || !expenses[0].Amount.Equal(dec("5")) {
			t.Errorf("expenses = %+v", expenses)
		}
	})

	t.Run("unknown cycle", func(t *testing.T) {
		_, _, err := f.engine.ListExpenses(ctx, f.member, f.room.ID, "missing")
		if !errors.Is(err, lifecycle.ErrCycleNotFound) {
			t.Errorf("err = %v, want ErrCycleNotFound", err)
		}
	})

	t.Run("report", func(t *testing.T) {
		r, err := f.engine.BuildCycleReport(ctx, f.admin, f.room.ID, closed.ID)
		if err != nil {
			t.Fatalf("BuildCycleReport failed: %v", err)
		}
		if r.Room.ID != f.room.ID || !r.Cycle.TotalAmount.Equal(dec("100")) || len(r.Expenses) != 2 || len(r.Members) != 2 {
			t.Errorf("report = %+v", r)
		}
	})
}

func TestListNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "100")
	n := &models.Notification{UserID: f.member.UserID, RoomID: f.room.ID, Content: "hello", Severity: models.SeverityInfo}
	if err := f.store.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	got, err := f.engine.ListNotifications(ctx, f.member)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(got) != 1 || got[0].Content != "hello" {
		t.Errorf("notifications = %+v", got)
	}
	if mine, _ := f.engine.ListNotifications(ctx, f.admin); len(mine) != 0 {
		t.Errorf("admin sees %d notifications, want 0", len(mine))
	}
}
