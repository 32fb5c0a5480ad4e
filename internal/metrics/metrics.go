// Package metrics exposes Prometheus instrumentation for the connection
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus metrics behind its own
// registry so tests can create isolated instances.
type Collector struct {
	registry *prometheus.Registry

	connectionsTotal  *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	stateTransitions  *prometheus.CounterVec
	commandsTotal     *prometheus.CounterVec
	callDuration      prometheus.Histogram
	eventsDropped     prometheus.Counter
}

// New creates a collector with all metrics registered under the given
// namespace.
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "total",
			Help:      "Total number of connections created, by direction",
		}, []string{"direction"}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of connections not yet destroyed",
		}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "state_transitions_total",
			Help:      "Visible connection state transitions, by edge",
		}, []string{"from", "to"}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "commands_total",
			Help:      "User commands executed against connections, by outcome",
		}, []string{"op", "outcome"}),
		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "call_duration_seconds",
			Help:      "Duration of completed calls",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Lifecycle events dropped because a buffer was full",
		}),
	}
}

// ConnectionCreated records a new connection.
func (c *Collector) ConnectionCreated(direction string) {
	c.connectionsTotal.WithLabelValues(direction).Inc()
	c.connectionsActive.Inc()
}

// ConnectionDestroyed records a connection reaching its terminal state.
func (c *Collector) ConnectionDestroyed() {
	c.connectionsActive.Dec()
}

// StateTransition records a visible state change.
func (c *Collector) StateTransition(from, to string) {
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// Command records a user command and its outcome ("ok" or "failed").
func (c *Collector) Command(op, outcome string) {
	c.commandsTotal.WithLabelValues(op, outcome).Inc()
}

// CallEnded records the duration of a completed call.
func (c *Collector) CallEnded(duration time.Duration) {
	c.callDuration.Observe(duration.Seconds())
}

// EventDropped records a dropped lifecycle event.
func (c *Collector) EventDropped() {
	c.eventsDropped.Inc()
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
