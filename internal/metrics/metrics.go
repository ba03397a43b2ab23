package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apertura",
			Name:      "booking_created_total",
			Help:      "Count of appointments persisted by status.",
		},
		[]string{"status"},
	)

	bookingSplit = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apertura",
			Name:      "booking_split_total",
			Help:      "Count of mixed-service bookings decomposed into primary and secondary appointments.",
		},
	)

	quotaRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apertura",
			Name:      "quota_rejected_total",
			Help:      "Count of bookings rejected by the daily slot quota.",
		},
		[]string{"slot_type"},
	)

	travelConflict = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apertura",
			Name:      "travel_conflict_total",
			Help:      "Count of bookings rejected for insufficient travel time.",
		},
	)

	recurrenceExpanded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apertura",
			Name:      "recurrence_expanded_total",
			Help:      "Count of block-out occurrences generated by cadence.",
		},
		[]string{"cadence"},
	)

	notificationFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apertura",
			Name:      "notification_failed_total",
			Help:      "Count of notification sends that failed, by kind.",
		},
		[]string{"kind"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingSplit, quotaRejected,
			travelConflict, recurrenceExpanded, notificationFailed,
		)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingSplit() {
	bookingSplit.Inc()
}

func IncQuotaRejected(slotType string) {
	quotaRejected.WithLabelValues(slotType).Inc()
}

func IncTravelConflict() {
	travelConflict.Inc()
}

func AddRecurrenceExpanded(cadence string, n int) {
	recurrenceExpanded.WithLabelValues(cadence).Add(float64(n))
}

func IncNotificationFailed(kind string) {
	notificationFailed.WithLabelValues(kind).Inc()
}
