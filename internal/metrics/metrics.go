package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "bookings_created_total",
			Help:      "Bookings successfully created.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "booking_transitions_total",
			Help:      "Lifecycle events by outcome (applied, rejected, conflict).",
		},
		[]string{"event", "outcome"},
	)

	holdsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "holds_expired_total",
			Help:      "Soft holds expired by the sweeper.",
		},
	)

	notifyTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "notify_tasks_total",
			Help:      "Notification delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, transitions, holdsExpired, notifyTasks)
	})
}

// IncHTTP increments the counter for an endpoint/code pair.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncTransition(event, outcome string) {
	transitions.WithLabelValues(event, outcome).Inc()
}

func IncHoldExpired() {
	holdsExpired.Inc()
}

func IncNotifyTask(outcome string) {
	notifyTasks.WithLabelValues(outcome).Inc()
}
