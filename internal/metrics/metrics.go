package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bidconnect/notification-service/internal/domain"
)

// Consumer outcome label values.
const (
	OutcomeProcessed        = "processed"
	OutcomeMalformed        = "malformed"
	OutcomeSkippedDuplicate = "skipped_duplicate"
	OutcomeFailed           = "failed"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	DeliveryLatency     *prometheus.HistogramVec
	EventsConsumed      *prometheus.CounterVec
}

// New registers all instruments with reg. Tests pass a fresh
// prometheus.NewRegistry() so nothing leaks between them.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications accepted by the mail transport.",
		}, []string{"event_type"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notifications that ended in FAILED.",
		}, []string{"event_type"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_delivery_seconds",
			Help:    "Latency from record creation to transport acceptance.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),

		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_events_consumed_total",
			Help: "Events read from the transport, by handling outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.NotificationsSent,
		m.NotificationsFailed,
		m.DeliveryLatency,
		m.EventsConsumed,
	)

	return m
}

// ProcessorHooks returns the callbacks expected by service.MetricHooks.
func (m *Metrics) ProcessorHooks() (
	onSent func(domain.EventType, time.Duration),
	onFailed func(domain.EventType),
) {
	onSent = func(et domain.EventType, latency time.Duration) {
		m.NotificationsSent.WithLabelValues(string(et)).Inc()
		m.DeliveryLatency.WithLabelValues(string(et)).Observe(latency.Seconds())
	}
	onFailed = func(et domain.EventType) {
		m.NotificationsFailed.WithLabelValues(string(et)).Inc()
	}
	return
}

// ObserveEvent counts one consumed event under outcome.
func (m *Metrics) ObserveEvent(outcome string) {
	m.EventsConsumed.WithLabelValues(outcome).Inc()
}
