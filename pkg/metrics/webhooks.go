package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts gateway webhook deliveries by outcome.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duplicate *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vendora",
		Name:      "webhook_events_received",
		Help:      "Webhook events received, before verification.",
	}, []string{"gateway", "type"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vendora",
		Name:      "webhook_events_processed",
		Help:      "Webhook events processed successfully.",
	}, []string{"gateway", "type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vendora",
		Name:      "webhook_events_failed",
		Help:      "Webhook events that failed processing.",
	}, []string{"gateway", "type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vendora",
		Name:      "webhook_events_duplicate",
		Help:      "Webhook events skipped by the idempotency guard.",
	}, []string{"gateway", "type"})
	reg.MustRegister(received, processed, failed, duplicate)
	return &WebhookMetrics{
		received:  received,
		processed: processed,
		failed:    failed,
		duplicate: duplicate,
	}
}

func (w *WebhookMetrics) IncReceived(gateway, eventType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(gateway), normalizeLabel(eventType)).Inc()
}

func (w *WebhookMetrics) IncProcessed(gateway, eventType string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(gateway), normalizeLabel(eventType)).Inc()
}

func (w *WebhookMetrics) IncFailed(gateway, eventType string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(normalizeLabel(gateway), normalizeLabel(eventType)).Inc()
}

func (w *WebhookMetrics) IncDuplicate(gateway, eventType string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(gateway), normalizeLabel(eventType)).Inc()
}
