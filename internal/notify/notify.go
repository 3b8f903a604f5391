// Package notify delivers lifecycle events to room members as in-app
// notifications and emails.
//
// Delivery is best effort: failures are logged, counted and dropped, and
// never reach the operation that produced the event.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/roomledger/internal/lifecycle"
	"github.com/mmynk/roomledger/internal/metrics"
	"github.com/mmynk/roomledger/internal/models"
)

// Notifier creates in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, roomID, content string, severity models.Severity) error
}

// Mailer sends templated emails.
type Mailer interface {
	SendEmail(ctx context.Context, address string, kind TemplateKind, params Params) error
}

// NotificationStore is the slice of storage.Store the in-app notifier needs.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// StoreNotifier persists in-app notifications.
type StoreNotifier struct {
	store NotificationStore
}

// NewStoreNotifier creates a Notifier writing to store.
func NewStoreNotifier(store NotificationStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

// Notify implements Notifier.
func (n *StoreNotifier) Notify(ctx context.Context, userID, roomID, content string, severity models.Severity) error {
	return n.store.CreateNotification(ctx, &models.Notification{
		UserID:   userID,
		RoomID:   roomID,
		Content:  content,
		Severity: severity,
	})
}

// Dispatcher fans lifecycle events out to every member of the room.
type Dispatcher struct {
	notifier Notifier
	mailer   Mailer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

var _ lifecycle.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. m may be nil.
func NewDispatcher(notifier Notifier, mailer Mailer, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if m == nil {
		m = metrics.Discard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: notifier, mailer: mailer, metrics: m, logger: logger}
}

// Dispatch implements lifecycle.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, events []lifecycle.Event) {
	for _, event := range events {
		switch ev := event.(type) {
		case lifecycle.ThresholdCrossed:
			d.thresholdCrossed(ctx, ev)
		default:
			d.logger.Warn("Dropping unknown event", "event", event.EventName())
		}
	}
}

func (d *Dispatcher) thresholdCrossed(ctx context.Context, ev lifecycle.ThresholdCrossed) {
	content := fmt.Sprintf("Spending in %s reached %s (threshold %s). New expenses are paused until %s closes the cycle.",
		ev.Room.Title, ev.Total.StringFixed(2), ev.Room.Threshold.StringFixed(2), ev.AdminName)
	params := Params{
		"room":      ev.Room.Title,
		"total":     ev.Total.StringFixed(2),
		"threshold": ev.Room.Threshold.StringFixed(2),
		"admin":     ev.AdminName,
	}

	for _, member := range ev.Members {
		if err := d.notifier.Notify(ctx, member.UserID, ev.Room.ID, content, models.SeverityWarning); err != nil {
			d.metrics.NotificationFailures.WithLabelValues(metrics.ChannelInApp).Inc()
			d.logger.Warn("In-app notification failed",
				"room_id", ev.Room.ID,
				"user_id", member.UserID,
				"error", err,
			)
		}

		memberParams := params.With("name", member.DisplayName)
		if err := d.mailer.SendEmail(ctx, member.Email, TemplateThresholdCrossed, memberParams); err != nil {
			d.metrics.NotificationFailures.WithLabelValues(metrics.ChannelEmail).Inc()
			d.logger.Warn("Threshold email failed",
				"room_id", ev.Room.ID,
				"user_id", member.UserID,
				"error", err,
			)
		}
	}

	d.logger.Info("Threshold notifications dispatched",
		"room_id", ev.Room.ID,
		"cycle_id", ev.CycleID,
		"members_count", len(ev.Members),
	)
}
