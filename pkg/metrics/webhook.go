package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records delivery outcomes for inbound payment webhooks.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
// A nil registerer yields a no-op collector, which tests rely on.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptstudio",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Inbound webhook deliveries by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "promptstudio",
		Subsystem: "webhook",
		Name:      "processing_seconds",
		Help:      "Time spent processing inbound webhooks.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"gateway"})
	reg.MustRegister(deliveries, duration)
	return &WebhookMetrics{
		deliveries: deliveries,
		duration:   duration,
	}
}

// IncDelivery increments the delivery counter for the gateway and outcome.
func (w *WebhookMetrics) IncDelivery(gateway, outcome string) {
	if w == nil || w.deliveries == nil {
		return
	}
	w.deliveries.WithLabelValues(labelOrUnknown(gateway), labelOrUnknown(outcome)).Inc()
}

// ObserveProcessing records how long a webhook took to process.
func (w *WebhookMetrics) ObserveProcessing(gateway string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(labelOrUnknown(gateway)).Observe(duration.Seconds())
}

func labelOrUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
