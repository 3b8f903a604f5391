// Package metrics defines the Prometheus collectors for the expense-cycle lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roomledger"

// Notification channels used as label values.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// Metrics holds the lifecycle counters.
type Metrics struct {
	ExpensesRecorded     prometheus.Counter
	ThresholdCrossings   prometheus.Counter
	CyclesClosed         *prometheus.CounterVec
	CycleRollovers       prometheus.Counter
	NotificationFailures *prometheus.CounterVec
}

// New registers the lifecycle collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExpensesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_recorded_total",
			Help:      "Expenses recorded against an open cycle.",
		}),
		ThresholdCrossings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_crossings_total",
			Help:      "Expenses that brought a cycle to or above its room threshold.",
		}),
		CyclesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_closed_total",
			Help:      "Cycles closed by a room admin, by whether member statuses were reset.",
		}, []string{"reset"}),
		CycleRollovers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_rollovers_total",
			Help:      "Full settlements that started a fresh payment round.",
		}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notification deliveries that failed and were dropped.",
		}, []string{"channel"}),
	}
}

// Discard returns collectors registered on a private registry, for callers
// that do not export metrics.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
