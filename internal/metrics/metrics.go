// Package metrics exposes signaling counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "peercall"

// Drop reasons.
const (
	DropUnknownTarget = "unknown_target"
	DropTransport     = "transport"
	DropRateLimited   = "rate_limited"
	DropBadPayload    = "bad_payload"
	DropNoCall        = "no_call"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	connections prometheus.Gauge
	inbound     *prometheus.CounterVec
	forwarded   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	calls       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live signaling connections.",
		}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Events received from clients by type.",
		}, []string{"event"}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwarded_events_total",
			Help:      "Events delivered to a peer by type.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Events not delivered by reason.",
		}, []string{"reason"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_total",
			Help:      "Call attempt state transitions.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(m.connections, m.inbound, m.forwarded, m.dropped, m.calls)
	return m
}

func (m *Metrics) Connected() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) Disconnected() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Inbound(event string) {
	if m != nil {
		m.inbound.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Forwarded(event string) {
	if m != nil {
		m.forwarded.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CallTransition(state string) {
	if m != nil {
		m.calls.WithLabelValues(state).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
