package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridesphere", Name: "rides_created_total", Help: "Total ride offers created"})

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridesphere", Name: "bookings_total", Help: "Booking attempts by final outcome"},
		[]string{"outcome"},
	)
	BookingRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridesphere", Name: "booking_retries_total", Help: "Seat reservations retried after a lost version race"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ridesphere",
		Name:      "search_duration_seconds",
		Help:      "Ride search latency distribution",
		Buckets:   prometheus.DefBuckets,
	})
	SearchCandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridesphere", Name: "search_candidates_dropped_total", Help: "Geo candidates removed by business filters"},
		[]string{"filter"},
	)
)
