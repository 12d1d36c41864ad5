// Package metrics provides the Prometheus instrumentation of the checkout
// service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "whatsagent"

// New creates a new Metrics instance registered on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checkout",
				Name:      "created_total",
				Help:      "Total checkouts created by kind, tier, and deal status",
			},
			[]string{"kind", "tier", "deal_status"},
		),
		taxCalculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checkout",
				Name:      "tax_calculations_total",
				Help:      "Total Stripe tax calculations by reverse charge outcome",
			},
			[]string{"reverse_charge"},
		),
		exposures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "experiment",
				Name:      "exposures_total",
				Help:      "Total first-time experiment assignments by experiment and variant",
			},
			[]string{"experiment", "variant"},
		),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "experiment",
				Name:      "conversions_total",
				Help:      "Total experiment conversions by experiment and variant",
			},
			[]string{"experiment", "variant"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stripe",
				Name:      "webhook_events_total",
				Help:      "Total Stripe webhook events handled by type and result",
			},
			[]string{"type", "result"},
		),
		deadLetters: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "dead_letters_total",
				Help:      "Total stream events dead lettered after exhausting their deliveries",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.checkouts,
		m.taxCalculations,
		m.exposures,
		m.conversions,
		m.webhookEvents,
		m.deadLetters,
	)
	return m
}

// Metrics records checkout service measurements.
type Metrics struct {
	registry *prometheus.Registry

	checkouts       *prometheus.CounterVec
	taxCalculations *prometheus.CounterVec
	exposures       *prometheus.CounterVec
	conversions     *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	deadLetters     prometheus.Counter
}

// Kinds of checkouts.
const (
	KindSession       = "session"
	KindPaymentIntent = "payment_intent"
)

// Results of handled webhook events.
const (
	ResultHandled   = "handled"
	ResultIgnored   = "ignored"
	ResultMalformed = "malformed"
	ResultFailed    = "failed"
)

// Handler serves the Prometheus exposition of the Metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CheckoutCreated(kind, tier, dealStatus string) {
	m.checkouts.WithLabelValues(kind, tier, dealStatus).Inc()
}

func (m *Metrics) TaxCalculated(reverseCharge bool) {
	m.taxCalculations.WithLabelValues(strconv.FormatBool(reverseCharge)).Inc()
}

func (m *Metrics) ExperimentExposed(experiment, variant string) {
	m.exposures.WithLabelValues(experiment, variant).Inc()
}

func (m *Metrics) ExperimentConverted(experiment, variant string) {
	m.conversions.WithLabelValues(experiment, variant).Inc()
}

func (m *Metrics) WebhookEvent(eventType, result string) {
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) EventDeadLettered() {
	m.deadLetters.Inc()
}
