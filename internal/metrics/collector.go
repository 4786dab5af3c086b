// Package metrics exposes relay activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector holds the relay's metrics on its own registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	sessionsTotal    *prometheus.CounterVec
	sessionDuration  *prometheus.HistogramVec
	framesCaptured   prometheus.Counter
	messagesSent     *prometheus.CounterVec
	commandsRejected *prometheus.CounterVec
	hubClients       prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a collector registered on a fresh registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.sessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished capture sessions",
		},
		[]string{"origin", "outcome"},
	)

	c.sessionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Capture session duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"origin"},
	)

	c.framesCaptured = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Total number of analyser frames captured",
		},
	)

	c.messagesSent = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of wire messages sent to the controller",
		},
		[]string{"kind"}, // kind: text, binary
	)

	c.commandsRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Total number of rejected articulation commands",
		},
		[]string{"reason"}, // reason: decode, busy
	)

	c.hubClients = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_clients",
			Help:      "Number of connected hub clients",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSession records a finished session.
func (c *Collector) RecordSession(origin, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.sessionsTotal.WithLabelValues(origin, outcome).Inc()
	c.sessionDuration.WithLabelValues(origin).Observe(duration.Seconds())
}

// RecordFrame counts one captured frame.
func (c *Collector) RecordFrame() {
	if c == nil {
		return
	}
	c.framesCaptured.Inc()
}

// RecordSent counts text and binary messages handed to the transport.
func (c *Collector) RecordSent(text, binary int) {
	if c == nil {
		return
	}
	c.messagesSent.WithLabelValues("text").Add(float64(text))
	c.messagesSent.WithLabelValues("binary").Add(float64(binary))
}

// RecordRejected counts a command dropped for reason.
func (c *Collector) RecordRejected(reason string) {
	if c == nil {
		return
	}
	c.commandsRejected.WithLabelValues(reason).Inc()
}

// SetHubClients sets the connected hub client count.
func (c *Collector) SetHubClients(n int) {
	if c == nil {
		return
	}
	c.hubClients.Set(float64(n))
}
