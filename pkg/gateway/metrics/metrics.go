// Package metrics exposes Prometheus counters for the session handoff and
// relay paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionsIssued prometheus.Counter
	redeems        *prometheus.CounterVec
	activeRelays   prometheus.Gauge
	relayFailures  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conversation",
			Name:      "sessions_issued_total",
			Help:      "One-time session credentials minted.",
		}),
		redeems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conversation",
			Name:      "session_redeems_total",
			Help:      "Credential redemption attempts by outcome.",
		}, []string{"outcome"}),
		activeRelays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "conversation",
			Name:      "active_relays",
			Help:      "Relays currently streaming.",
		}),
		relayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conversation",
			Name:      "relay_failures_total",
			Help:      "Relays that ended with an error.",
		}),
	}
	m.registry.MustRegister(m.sessionsIssued, m.redeems, m.activeRelays, m.relayFailures)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.sessionsIssued.Inc()
}

func (m *Metrics) RedeemOK() {
	if m == nil {
		return
	}
	m.redeems.WithLabelValues("ok").Inc()
}

func (m *Metrics) RedeemInvalid() {
	if m == nil {
		return
	}
	m.redeems.WithLabelValues("invalid").Inc()
}

func (m *Metrics) RelayStarted() {
	if m == nil {
		return
	}
	m.activeRelays.Inc()
}

func (m *Metrics) RelayEnded(failed bool) {
	if m == nil {
		return
	}
	m.activeRelays.Dec()
	if failed {
		m.relayFailures.Inc()
	}
}
