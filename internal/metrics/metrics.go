// Package metrics holds the Prometheus instruments of the order flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// OrderMetrics records order and payment outcomes. A nil *OrderMetrics is
// valid and records nothing.
type OrderMetrics struct {
	ordersCreated   prometheus.Counter
	confirmations   *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	oversold        prometheus.Counter
	reconciliations *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *OrderMetrics {
	m := &OrderMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "created_total",
			Help: "Orders created from a cart or item list.",
		}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "confirmations_total",
			Help: "Payment confirmations by outcome.",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "cancellations_total",
			Help: "Order cancellations by outcome.",
		}, []string{"outcome"}),
		oversold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "oversold_total",
			Help: "Payments captured by the gateway whose stock could not be decremented.",
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "reconciliations_total",
			Help: "Gateway charges or refunds flagged for manual settlement, by operation.",
		}, []string{"operation"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "payment", Name: "gateway_duration_seconds",
			Help:    "Latency of payment gateway calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.ordersCreated, m.confirmations, m.cancellations, m.oversold, m.reconciliations, m.gatewayDuration)
	return m
}

func (m *OrderMetrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// PaymentConfirmed counts a confirmation attempt; outcome is "paid" or an error kind.
func (m *OrderMetrics) PaymentConfirmed(outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}

func (m *OrderMetrics) OrderCanceled(outcome string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(outcome).Inc()
}

// Oversold counts a captured payment that could not be fulfilled from stock.
func (m *OrderMetrics) Oversold() {
	if m == nil {
		return
	}
	m.oversold.Inc()
}

// ReconciliationFlagged counts a gateway call whose effect could not be recorded.
func (m *OrderMetrics) ReconciliationFlagged(operation string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(operation).Inc()
}

func (m *OrderMetrics) ObserveGateway(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}
