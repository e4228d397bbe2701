package metrics

import (
	"errors"
	"time"

	"github.com/dkeye/Hangout/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hangout_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Signaling metrics
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hangout_ws_connections",
			Help: "Currently open signaling connections",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_events_received_total",
			Help: "Inbound events by type",
		},
		[]string{"type"},
	)

	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_event_errors_total",
			Help: "Inbound events rejected, by kind",
		},
		[]string{"kind"},
	)

	SendDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_send_dropped_total",
			Help: "Outbound frames not delivered",
		},
		[]string{"reason"}, // "gone" or "backpressure"
	)

	SignalsRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hangout_signals_relayed_total",
			Help: "Signaling payloads forwarded to a peer",
		},
	)

	// Business metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hangout_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	Admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_admissions_total",
			Help: "Admission decisions",
		},
		[]string{"result"}, // "admitted" or "rejected"
	)

	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hangout_messages_posted_total",
			Help: "Total chat messages accepted",
		},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hangout_store_latency_seconds",
			Help:    "Room store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"op"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hangout_store_errors_total",
			Help: "Room store failures",
		},
		[]string{"op"},
	)
)

// ObserveStore records one store call that started at start. Lookups of
// unknown rooms and code collisions are not failures.
func ObserveStore(op string, start time.Time, err error) {
	StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrCodeTaken) {
		StoreErrors.WithLabelValues(op).Inc()
	}
}
