package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes for inbound payment-processor events.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// Webhook event outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeUnhandled = "unhandled"
	OutcomeError     = "error"
)

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Time spent applying a webhook event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	reg.MustRegister(processed, duration)
	return &WebhookMetrics{
		processed: processed,
		duration:  duration,
	}
}

// IncOutcome increments the counter for the given event type and outcome.
func (m *WebhookMetrics) IncOutcome(eventType, outcome string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

// ObserveDuration records how long an event took to apply.
func (m *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
