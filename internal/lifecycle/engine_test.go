package lifecycle_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/mmynk/roomledger/internal/lifecycle"
	"github.com/mmynk/roomledger/internal/metrics"
	"github.com/mmynk/roomledger/internal/models"
	"github.com/mmynk/roomledger/internal/storage/sqlite"
	"github.com/mmynk/roomledger/internal/storage/storagetest"
)

// recorder captures dispatched events.
type recorder struct {
	mu     sync.Mutex
	events []lifecycle.Event
}

func (r *recorder) Dispatch(_ context.Context, events []lifecycle.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) crossings() []lifecycle.ThresholdCrossed {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lifecycle.ThresholdCrossed
	for _, e := range r.events {
		if c, ok := e.(lifecycle.ThresholdCrossed); ok {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	engine  *lifecycle.Engine
	store   *sqlite.SQLiteStore
	events  *recorder
	metrics *metrics.Metrics
	admin   lifecycle.Actor
	member  lifecycle.Actor
	room    *models.Room
}

func newFixture(t *testing.T, threshold string) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "lifecycle.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	events := &recorder{}
	m := metrics.Discard()
	engine := lifecycle.New(store, lifecycle.WithDispatcher(events), lifecycle.WithMetrics(m))

	alice := storagetest.NewUser(t, store, "alice")
	bob := storagetest.NewUser(t, store, "bob")
	admin := lifecycle.Actor{UserID: alice.ID, Role: models.RoleUser}
	member := lifecycle.Actor{UserID: bob.ID, Role: models.RoleUser}

	ctx := context.Background()
	room, err := engine.CreateRoom(ctx, admin, lifecycle.RoomInput{Title: "Flat 4B", Threshold: dec(threshold)})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := engine.AddMember(ctx, admin, room.ID, bob.Email); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	return &fixture{engine: engine, store: store, events: events, metrics: m, admin: admin, member: member, room: room}
}

func (f *fixture) record(t *testing.T, amount string) *lifecycle.RecordedExpense {
	t.Helper()
	res, err := f.engine.RecordExpense(context.Background(), f.admin, f.room.ID, lifecycle.ExpenseInput{ItemName: "item", Amount: dec(amount)})
	if err != nil {
		t.Fatalf("RecordExpense(%s) failed: %v", amount, err)
	}
	return res
}

func (f *fixture) summary(t *testing.T) *lifecycle.CycleSummary {
	t.Helper()
	s, err := f.engine.GetCycleSummary(context.Background(), f.admin, f.room.ID)
	if err != nil {
		t.Fatalf("GetCycleSummary failed: %v", err)
	}
	return s
}

func (f *fixture) openCycles(t *testing.T) []models.Cycle {
	t.Helper()
	cycles, err := f.store.ListCycles(context.Background(), f.room.ID)
	if err != nil {
		t.Fatalf("ListCycles failed: %v", err)
	}
	var open []models.Cycle
	for _, c := range cycles {
		if !c.IsClosed {
			open = append(open, c)
		}
	}
	return open
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expectKind(t *testing.T, err error, want lifecycle.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := lifecycle.KindOf(err); got != want {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, want, err)
	}
}

func TestCycleLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1000")

	t.Run("expense below threshold", func(t *testing.T) {
		res := f.record(t, "600")
		if res.Crossed {
			t.Error("600 of 1000 should not cross")
		}
		if !res.CycleTotal.Equal(dec("600")) {
			t.Errorf("total = %s, want 600", res.CycleTotal)
		}
		if len(f.events.crossings()) != 0 {
			t.Error("no notifications expected below threshold")
		}
	})

	t.Run("expense crossing threshold", func(t *testing.T) {
		res := f.record(t, "500")
		if !res.Crossed {
			t.Fatal("1100 of 1000 should cross")
		}
		if !res.CycleTotal.Equal(dec("1100")) {
			t.Errorf("total = %s, want 1100", res.CycleTotal)
		}

		crossings := f.events.crossings()
		if len(crossings) != 1 {
			t.Fatalf("crossing events = %d, want 1", len(crossings))
		}
		if len(crossings[0].Members) != 2 {
			t.Errorf("event members = %d, want 2", len(crossings[0].Members))
		}
		if crossings[0].AdminName != "alice" {
			t.Errorf("admin name = %q, want alice", crossings[0].AdminName)
		}

		s := f.summary(t)
		if s.Unpaid != 2 || s.Paid != 0 {
			t.Errorf("paid/unpaid = %d/%d, want 0/2", s.Paid, s.Unpaid)
		}
		if s.Cycle == nil || !s.Cycle.IsFrozen {
			t.Error("crossed cycle should be frozen")
		}
	})

	t.Run("expense after crossing rejected", func(t *testing.T) {
		_, err := f.engine.RecordExpense(ctx, f.admin, f.room.ID, lifecycle.ExpenseInput{ItemName: "late", Amount: dec("1")})
		expectKind(t, err, lifecycle.KindInvalidState)
		if !errors.Is(err, lifecycle.ErrThresholdCrossed) {
			t.Errorf("err = %v, want ErrThresholdCrossed", err)
		}
		if !f.summary(t).Total.Equal(dec("1100")) {
			t.Error("rejected expense must not change the total")
		}
	})

	t.Run("close cycle", func(t *testing.T) {
		cycle, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{})
		if err != nil {
			t.Fatalf("CloseCycle failed: %v", err)
		}
		if !cycle.IsClosed || cycle.ClosedAt == 0 {
			t.Errorf("closed cycle = %+v", cycle)
		}
		if open := f.openCycles(t); len(open) != 0 {
			t.Errorf("open cycles = %d, want 0", len(open))
		}
		if s := f.summary(t); s.Cycle != nil || !s.Total.IsZero() {
			t.Errorf("summary after close = %+v", s)
		}
	})

	t.Run("settlement opens new cycle", func(t *testing.T) {
		first, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, f.admin.UserID)
		if err != nil {
			t.Fatalf("MarkMemberPaid(admin) failed: %v", err)
		}
		if first.Settled {
			t.Error("one member still unpaid, should not settle")
		}

		out, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, f.member.UserID)
		if err != nil {
			t.Fatalf("MarkMemberPaid(member) failed: %v", err)
		}
		if !out.Settled || !out.CycleCreated {
			t.Fatalf("outcome = %+v, want settled with new cycle", out)
		}
		if !out.OpenCycle.TotalAmount.IsZero() {
			t.Errorf("new cycle total = %s, want 0", out.OpenCycle.TotalAmount)
		}

		s := f.summary(t)
		if s.Unpaid != 2 {
			t.Errorf("unpaid = %d, want everyone reset", s.Unpaid)
		}
		if s.Cycle == nil || s.Cycle.ID != out.OpenCycle.ID {
			t.Error("summary should report the new cycle")
		}
		if got := testutil.ToFloat64(f.metrics.CycleRollovers); got != 1 {
			t.Errorf("rollovers = %v, want 1", got)
		}
	})

	t.Run("new cycle accepts expenses", func(t *testing.T) {
		res := f.record(t, "10")
		if res.Crossed || !res.CycleTotal.Equal(dec("10")) {
			t.Errorf("result = %+v", res)
		}
	})

	if got := testutil.ToFloat64(f.metrics.ExpensesRecorded); got != 3 {
		t.Errorf("expenses recorded = %v, want 3", got)
	}
	if got := testutil.ToFloat64(f.metrics.ThresholdCrossings); got != 1 {
		t.Errorf("crossings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.metrics.CyclesClosed.WithLabelValues("false")); got != 1 {
		t.Errorf("cycles closed = %v, want 1", got)
	}
}

func TestConcurrentExpensesCrossOnce(t *testing.T) {
	f := newFixture(t, "900")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*lifecycle.RecordedExpense
		errs    []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.RecordExpense(context.Background(), f.admin, f.room.ID,
				lifecycle.ExpenseInput{ItemName: "rent share", Amount: dec("500")})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results = append(results, res)
		}()
	}
	wg.Wait()

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	crossed := 0
	for _, r := range results {
		if r.Crossed {
			crossed++
		}
	}
	if crossed != 1 {
		t.Errorf("crossed = %d, want exactly 1", crossed)
	}
	if total := f.summary(t).Total; !total.Equal(dec("1000")) {
		t.Errorf("total = %s, want 1000", total)
	}
	if n := len(f.events.crossings()); n != 1 {
		t.Errorf("crossing events = %d, want 1", n)
	}
}

func TestTotalMatchesExpenses(t *testing.T) {
	f := newFixture(t, "100000")
	amounts := []string{"12.34", "0.01", "99.99", "250", "7.66"}

	var wg sync.WaitGroup
	for _, a := range amounts {
		wg.Add(1)
		go func(amount string) {
			defer wg.Done()
			if _, err := f.engine.RecordExpense(context.Background(), f.admin, f.room.ID,
				lifecycle.ExpenseInput{ItemName: "x", Amount: dec(amount)}); err != nil {
				t.Errorf("RecordExpense failed: %v", err)
			}
		}(a)
	}
	wg.Wait()

	cycle, expenses, err := f.engine.ListExpenses(context.Background(), f.member, f.room.ID, "")
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	if len(expenses) != len(amounts) {
		t.Errorf("expenses = %d, want %d", len(expenses), len(amounts))
	}
	if !sum.Equal(cycle.TotalAmount) || !sum.Equal(dec("370")) {
		t.Errorf("sum = %s, cycle total = %s, want 370", sum, cycle.TotalAmount)
	}
}

func TestRecordExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("amount equal to threshold crosses", func(t *testing.T) {
		f := newFixture(t, "500")
		if res := f.record(t, "500"); !res.Crossed {
			t.Error("total equal to threshold should cross")
		}
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, "500")
		inputs := map[string]lifecycle.ExpenseInput{
			"zero amount":     {ItemName: "x", Amount: decimal.Zero},
			"negative amount": {ItemName: "x", Amount: dec("-5")},
			"missing name":    {ItemName: "  ", Amount: dec("5")},
		}
		for name, in := range inputs {
			t.Run(name, func(t *testing.T) {
				_, err := f.engine.RecordExpense(ctx, f.admin, f.room.ID, in)
				expectKind(t, err, lifecycle.KindValidation)
			})
		}
	})

	t.Run("sub-cent amounts rejected", func(t *testing.T) {
		f := newFixture(t, "10")
		f.record(t, "9.99")

		for _, amount := range []string{"0.005", "0.001"} {
			_, err := f.engine.RecordExpense(ctx, f.admin, f.room.ID, lifecycle.ExpenseInput{ItemName: "gum", Amount: dec(amount)})
			if !errors.Is(err, lifecycle.ErrAmountPrecision) {
				t.Fatalf("RecordExpense(%s) err = %v, want ErrAmountPrecision", amount, err)
			}
		}
		if s := f.summary(t); !s.Total.Equal(dec("9.99")) || s.Cycle.IsFrozen {
			t.Fatalf("summary = total %s frozen %v, want 9.99 and open", s.Total, s.Cycle.IsFrozen)
		}

		if res := f.record(t, "0.010"); !res.Crossed || !res.CycleTotal.Equal(dec("10")) {
			t.Errorf("crossed = %v total = %s, want a crossing at 10", res.Crossed, res.CycleTotal)
		}
		if n := len(f.events.crossings()); n != 1 {
			t.Errorf("crossings = %d, want 1", n)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		f := newFixture(t, "500")
		f.engine = lifecycle.New(f.store, lifecycle.WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
		res, err := f.engine.RecordExpense(ctx, f.admin, f.room.ID, lifecycle.ExpenseInput{ItemName: " Milk ", Amount: dec("3.5")})
		if err != nil {
			t.Fatalf("RecordExpense failed: %v", err)
		}
		if res.Expense.Category != models.DefaultCategory {
			t.Errorf("category = %q, want %q", res.Expense.Category, models.DefaultCategory)
		}
		if res.Expense.ItemName != "Milk" {
			t.Errorf("item name = %q, want trimmed", res.Expense.ItemName)
		}
		if res.Expense.CreatedAt != 1700000000 {
			t.Errorf("created at = %d, want clock time", res.Expense.CreatedAt)
		}
		if res.Expense.AddedByID != f.admin.UserID {
			t.Errorf("added by = %q, want admin", res.Expense.AddedByID)
		}
	})

	t.Run("non admin forbidden", func(t *testing.T) {
		f := newFixture(t, "500")
		_, err := f.engine.RecordExpense(ctx, f.member, f.room.ID, lifecycle.ExpenseInput{ItemName: "x", Amount: dec("5")})
		expectKind(t, err, lifecycle.KindForbidden)
		if !errors.Is(err, lifecycle.ErrNotAdmin) {
			t.Errorf("err = %v, want ErrNotAdmin", err)
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		f := newFixture(t, "500")
		_, err := f.engine.RecordExpense(ctx, f.admin, "missing", lifecycle.ExpenseInput{ItemName: "x", Amount: dec("5")})
		expectKind(t, err, lifecycle.KindNotFound)
	})

	t.Run("room without open cycle gets one", func(t *testing.T) {
		f := newFixture(t, "100")
		f.record(t, "100")
		if _, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{}); err != nil {
			t.Fatalf("CloseCycle failed: %v", err)
		}

		res := f.record(t, "20")
		if res.Crossed || !res.CycleTotal.Equal(dec("20")) {
			t.Errorf("result = %+v", res)
		}
		if open := f.openCycles(t); len(open) != 1 {
			t.Errorf("open cycles = %d, want 1", len(open))
		}
	})

	t.Run("frozen cycle stays frozen after threshold raise", func(t *testing.T) {
		f := newFixture(t, "100")
		f.record(t, "150")
		if _, err := f.engine.UpdateThreshold(ctx, f.admin, f.room.ID, dec("1000")); err != nil {
			t.Fatalf("UpdateThreshold failed: %v", err)
		}
		_, err := f.engine.RecordExpense(ctx, f.admin, f.room.ID, lifecycle.ExpenseInput{ItemName: "x", Amount: dec("5")})
		if !errors.Is(err, lifecycle.ErrThresholdCrossed) {
			t.Errorf("err = %v, want ErrThresholdCrossed", err)
		}
	})

	t.Run("banned room rejects writes", func(t *testing.T) {
		f := newFixture(t, "100")
		appAdmin := lifecycle.Actor{UserID: "ops", Role: models.RoleAppAdmin}
		if err := f.engine.BanRoom(ctx, appAdmin, f.room.ID, true); err != nil {
			t.Fatalf("BanRoom failed: %v", err)
		}
		_, err := f.engine.RecordExpense(ctx, f.admin, f.room.ID, lifecycle.ExpenseInput{ItemName: "x", Amount: dec("5")})
		if !errors.Is(err, lifecycle.ErrRoomBanned) {
			t.Errorf("err = %v, want ErrRoomBanned", err)
		}
	})
}

func TestCloseCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("below threshold rejected", func(t *testing.T) {
		f := newFixture(t, "1000")
		f.record(t, "10")
		_, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{})
		expectKind(t, err, lifecycle.KindInvalidState)
		if !errors.Is(err, lifecycle.ErrThresholdNotReached) {
			t.Errorf("err = %v, want ErrThresholdNotReached", err)
		}
		if open := f.openCycles(t); len(open) != 1 || open[0].IsClosed {
			t.Error("cycle must remain open")
		}
	})

	t.Run("no open cycle", func(t *testing.T) {
		f := newFixture(t, "10")
		f.record(t, "10")
		if _, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{}); err != nil {
			t.Fatalf("CloseCycle failed: %v", err)
		}
		_, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{})
		if !errors.Is(err, lifecycle.ErrNoActiveCycle) {
			t.Errorf("err = %v, want ErrNoActiveCycle", err)
		}
	})

	t.Run("reset all", func(t *testing.T) {
		f := newFixture(t, "10")
		f.record(t, "10")
		if _, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, f.member.UserID); err != nil {
			t.Fatalf("MarkMemberPaid failed: %v", err)
		}
		if _, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{ResetAll: true}); err != nil {
			t.Fatalf("CloseCycle failed: %v", err)
		}
		if s := f.summary(t); s.Paid != 0 {
			t.Errorf("paid = %d, want 0 after reset", s.Paid)
		}
		if got := testutil.ToFloat64(f.metrics.CyclesClosed.WithLabelValues("true")); got != 1 {
			t.Errorf("closed with reset = %v, want 1", got)
		}
	})

	t.Run("without reset keeps payment status", func(t *testing.T) {
		f := newFixture(t, "10")
		f.record(t, "10")
		if _, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, f.member.UserID); err != nil {
			t.Fatalf("MarkMemberPaid failed: %v", err)
		}
		if _, err := f.engine.CloseCycle(ctx, f.admin, f.room.ID, lifecycle.CloseOptions{}); err != nil {
			t.Fatalf("CloseCycle failed: %v", err)
		}
		if s := f.summary(t); s.Paid != 1 {
			t.Errorf("paid = %d, want 1", s.Paid)
		}
	})

	t.Run("non admin forbidden", func(t *testing.T) {
		f := newFixture(t, "10")
		f.record(t, "10")
		_, err := f.engine.CloseCycle(ctx, f.member, f.room.ID, lifecycle.CloseOptions{})
		expectKind(t, err, lifecycle.KindForbidden)
	})
}

func TestMarkMemberPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("already paid", func(t *testing.T) {
		f := newFixture(t, "100")
		if _, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, f.member.UserID); err != nil {
			t.Fatalf("MarkMemberPaid failed: %v", err)
		}
		_, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, f.member.UserID)
		if !errors.Is(err, lifecycle.ErrAlreadyPaid) {
			t.Errorf("err = %v, want ErrAlreadyPaid", err)
		}
	})

	t.Run("unknown member", func(t *testing.T) {
		f := newFixture(t, "100")
		_, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, "stranger")
		if !errors.Is(err, lifecycle.ErrMemberNotFound) {
			t.Errorf("err = %v, want ErrMemberNotFound", err)
		}
	})

	t.Run("settlement with open cycle keeps it", func(t *testing.T) {
		f := newFixture(t, "100")
		before := f.openCycles(t)
		for _, id := range []string{f.admin.UserID, f.member.UserID} {
			if _, err := f.engine.MarkMemberPaid(ctx, f.admin, f.room.ID, id); err != nil {
				t.Fatalf("MarkMemberPaid failed: %v", err)
			}
		}
		after := f.openCycles(t)
		if len(after) != 1 || after[0].ID != before[0].ID {
			t.Errorf("open cycles = %+v, want the original one", after)
		}
		if s := f.summary(t); s.Unpaid != 2 {
			t.Errorf("unpaid = %d, want all reset", s.Unpaid)
		}
	})

	t.Run("member cannot mark", func(t *testing.T) {
		f := newFixture(t, "100")
		_, err := f.engine.MarkMemberPaid(ctx, f.member, f.room.ID, f.member.UserID)
		if !errors.Is(err, lifecycle.ErrNotAdmin) {
			t.Errorf("err = %v, want ErrNotAdmin", err)
		}
	})
}

func TestGetCycleSummaryAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "100")
	f.record(t, "40")

	if s, err := f.engine.GetCycleSummary(ctx, f.member, f.room.ID); err != nil || !s.Total.Equal(dec("40")) {
		t.Errorf("member summary = %+v, %v", s, err)
	}
	if _, err := f.engine.GetCycleSummary(ctx, lifecycle.Actor{UserID: "outsider"}, f.room.ID); !errors.Is(err, lifecycle.ErrNotMember) {
		t.Errorf("outsider err = %v, want ErrNotMember", err)
	}
	if _, err := f.engine.GetCycleSummary(ctx, lifecycle.Actor{UserID: "ops", Role: models.RoleAppAdmin}, f.room.ID); err != nil {
		t.Errorf("app admin err = %v", err)
	}
}

func TestDispatchIgnoresCancellation(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "cancel.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	var cancellable bool
	engine := lifecycle.New(store, lifecycle.WithDispatcher(lifecycle.DispatcherFunc(func(ctx context.Context, _ []lifecycle.Event) {
		cancellable = ctx.Done() != nil
	})))

	alice := storagetest.NewUser(t, store, "alice")
	admin := lifecycle.Actor{UserID: alice.ID}
	room, err := engine.CreateRoom(context.Background(), admin, lifecycle.RoomInput{Title: "Solo", Threshold: dec("5")})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res, err := engine.RecordExpense(ctx, admin, room.ID, lifecycle.ExpenseInput{ItemName: "x", Amount: dec("5")})
	if err != nil || !res.Crossed {
		t.Fatalf("RecordExpense = %+v, %v", res, err)
	}
	if cancellable {
		t.Error("dispatch context should be detached from request cancellation")
	}
}
