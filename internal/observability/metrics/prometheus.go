// Package metrics provides Prometheus metrics for the order pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	OrdersIngested     prometheus.Counter
	OrdersRetried      prometheus.Counter
	OrdersDeadLettered prometheus.Counter
	MalformedPayloads  prometheus.Counter
	IntakeDuration     prometheus.Histogram
	MedicationsCreated prometheus.Counter
	OrdersUpdated      prometheus.Counter
	EventsRelayed      prometheus.Counter
	OutboxPending      prometheus.Gauge
	LookupFailures     prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		OrdersIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_ingested_total",
			Help: "Total orders created from intake messages",
		}),
		OrdersRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_intake_retried_total",
			Help: "Total intake messages requeued after a transient failure",
		}),
		OrdersDeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_intake_dead_lettered_total",
			Help: "Total intake messages routed to the dead-letter queue",
		}),
		MalformedPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_intake_malformed_total",
			Help: "Total intake messages with an unparseable payload",
		}),
		IntakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_intake_duration_seconds",
			Help:    "Intake message processing duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		MedicationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medications_created_total",
			Help: "Total medications created",
		}),
		OrdersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_updated_total",
			Help: "Total successful order updates",
		}),
		EventsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_relayed_total",
			Help: "Total outbox events published to the broker",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patient_lookup_failures_total",
			Help: "Total failed best-effort patient lookups",
		}),
	}

	prometheus.MustRegister(
		m.OrdersIngested,
		m.OrdersRetried,
		m.OrdersDeadLettered,
		m.MalformedPayloads,
		m.IntakeDuration,
		m.MedicationsCreated,
		m.OrdersUpdated,
		m.EventsRelayed,
		m.OutboxPending,
		m.LookupFailures,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
