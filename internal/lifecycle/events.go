package lifecycle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmynk/roomledger/internal/models"
)

// Event is a side effect collected during a transaction and dispatched only
// after it commits.
type Event interface {
	EventName() string
}

// ThresholdCrossed is emitted once, by the expense that brought the cycle
// total from below the threshold to at or above it.
type ThresholdCrossed struct {
	Room      models.Room
	CycleID   string
	Total     decimal.Decimal
	AdminName string
	Members   []models.Member
}

func (ThresholdCrossed) EventName() string { return "threshold_crossed" }

// Dispatcher delivers committed events. Delivery is best effort: Dispatch
// never fails the operation that produced the events.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []Event)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, events []Event)

func (f DispatcherFunc) Dispatch(ctx context.Context, events []Event) { f(ctx, events) }

// outbox accumulates events inside a transaction closure.
type outbox struct {
	events []Event
}

func (o *outbox) add(e Event) {
	o.events = append(o.events, e)
}

// reset drops buffered events. Called at the start of every transaction
// attempt so a rolled-back attempt never leaks events.
func (o *outbox) reset() {
	o.events = o.events[:0]
}
