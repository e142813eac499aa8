package metrics

import (
	"sync"

	"github.com/arloliu/jetpush/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// PrometheusCollector never touches the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions *prometheus.CounterVec
	connEvents       *prometheus.CounterVec
	asyncErrors      prometheus.Counter
	drainDuration    *prometheus.HistogramVec
	registrations    *prometheus.CounterVec
	activeConsumers  prometheus.Gauge
	messages         *prometheus.CounterVec
	handleLatency    *prometheus.HistogramVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "jetpush" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "jetpush"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connection",
			Name:      "state_transitions_total",
			Help:      "Total manager state transitions by source and target state.",
		}, []string{"from", "to"})

		p.connEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connection",
			Name:      "events_total",
			Help:      "Total NATS connection events by kind.",
		}, []string{"event"})

		p.asyncErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connection",
			Name:      "async_errors_total",
			Help:      "Total asynchronous errors reported by the NATS client.",
		})

		p.drainDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "connection",
			Name:      "drain_duration_seconds",
			Help:      "Duration of connection drains by result (success|failure).",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"})

		p.registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "consumer",
			Name:      "registrations_total",
			Help:      "Push consumer registration attempts by consumer and result.",
		}, []string{"consumer", "result"})

		p.activeConsumers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "consumer",
			Name:      "active",
			Help:      "Current number of tracked push consumer subscriptions.",
		})

		p.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Messages handled by consumer and outcome (ack,nak,term,handled).",
		}, []string{"consumer", "outcome"})

		p.handleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "dispatch",
			Name:      "handle_seconds",
			Help:      "Decode plus handle latency in seconds by consumer.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"consumer"})

		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.connEvents)
		p.reg.MustRegister(p.asyncErrors)
		p.reg.MustRegister(p.drainDuration)
		p.reg.MustRegister(p.registrations)
		p.reg.MustRegister(p.activeConsumers)
		p.reg.MustRegister(p.messages)
		p.reg.MustRegister(p.handleLatency)
	})
}

// RecordStateTransition increments the transition counter.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordConnectionEvent increments the connection event counter.
func (p *PrometheusCollector) RecordConnectionEvent(event string) {
	p.ensureRegistered()
	p.connEvents.WithLabelValues(event).Inc()
}

// RecordAsyncError increments the async error counter.
func (p *PrometheusCollector) RecordAsyncError() {
	p.ensureRegistered()
	p.asyncErrors.Inc()
}

// RecordDrain observes a drain duration labeled by result.
func (p *PrometheusCollector) RecordDrain(duration float64, success bool) {
	p.ensureRegistered()
	p.drainDuration.WithLabelValues(resultLabel(success)).Observe(duration)
}

// RecordRegistration increments the registration counter.
func (p *PrometheusCollector) RecordRegistration(consumer string, success bool) {
	p.ensureRegistered()
	p.registrations.WithLabelValues(consumer, resultLabel(success)).Inc()
}

// SetActiveConsumers sets the active consumers gauge.
func (p *PrometheusCollector) SetActiveConsumers(count int) {
	p.ensureRegistered()
	p.activeConsumers.Set(float64(count))
}

// RecordMessage increments the message counter and observes handle latency.
func (p *PrometheusCollector) RecordMessage(consumer string, outcome string, duration float64) {
	p.ensureRegistered()
	p.messages.WithLabelValues(consumer, outcome).Inc()
	p.handleLatency.WithLabelValues(consumer).Observe(duration)
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}
