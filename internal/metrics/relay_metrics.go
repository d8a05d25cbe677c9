package metrics

import (
	"time"

	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch attempt outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeHTTPError    = "http_error"
	OutcomeNetworkError = "network_error"
)

// RelayMetrics интерфейс для метрик релея
type RelayMetrics interface {
	IncDispatchAttempt(destination, outcome string)
	ObserveDispatch(destination string, success bool, attempts int, duration time.Duration)
	IncEvent(eventType, outcome string)
	IncOrder(result string)
	IncProvisioned(result string)
}

type relayMetrics struct {
	log              *logger.Logger
	dispatchAttempts *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchTries    *prometheus.HistogramVec
	events           *prometheus.CounterVec
	orders           *prometheus.CounterVec
	provisioned      *prometheus.CounterVec
}

// NewRegistry returns a registry with the Go runtime and process collectors
// already registered.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewRelayMetrics создает метрики релея в указанном реестре
func NewRelayMetrics(registry *prometheus.Registry, log *logger.Logger) RelayMetrics {
	factory := promauto.With(registry)

	m := &relayMetrics{
		log: log,
		dispatchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_dispatch_attempts_total",
				Help: "Outbound webhook attempts by destination and outcome",
			},
			[]string{"destination", "outcome"},
		),
		dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_dispatches_total",
				Help: "Completed dispatch sequences by destination and result",
			},
			[]string{"destination", "result"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_dispatch_duration_seconds",
				Help:    "Wall time of a dispatch sequence including backoff",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"destination"},
		),
		dispatchTries: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_dispatch_attempts",
				Help:    "Attempts needed per dispatch sequence",
				Buckets: prometheus.LinearBuckets(1, 1, 5),
			},
			[]string{"destination"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_payment_events_total",
				Help: "Payment processor events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		orders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_orders_total",
				Help: "Order recording results",
			},
			[]string{"result"},
		),
		provisioned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_accounts_provisioned_total",
				Help: "Learning-platform account provisioning results",
			},
			[]string{"result"},
		),
	}
	log.Debugw("Relay metrics registered")
	return m
}

func (m *relayMetrics) IncDispatchAttempt(destination, outcome string) {
	m.dispatchAttempts.WithLabelValues(destination, outcome).Inc()
}

func (m *relayMetrics) ObserveDispatch(destination string, success bool, attempts int, duration time.Duration) {
	result := "failed"
	if success {
		result = "delivered"
	}
	m.dispatches.WithLabelValues(destination, result).Inc()
	m.dispatchDuration.WithLabelValues(destination).Observe(duration.Seconds())
	m.dispatchTries.WithLabelValues(destination).Observe(float64(attempts))
}

func (m *relayMetrics) IncEvent(eventType, outcome string) {
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *relayMetrics) IncOrder(result string) {
	m.orders.WithLabelValues(result).Inc()
}

func (m *relayMetrics) IncProvisioned(result string) {
	m.provisioned.WithLabelValues(result).Inc()
}
