package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	slotQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "slot_queries_total",
			Help:      "Count of slot availability queries.",
		},
	)

	lessonsBooked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "lessons_booked_total",
			Help:      "Count of lessons booked successfully.",
		},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutorbook",
			Name:      "booking_rejected_total",
			Help:      "Count of booking attempts rejected by reason.",
		},
		[]string{"reason"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, slotQueries, lessonsBooked, bookingRejected)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncSlotQuery() {
	slotQueries.Inc()
}

func IncLessonBooked() {
	lessonsBooked.Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}
