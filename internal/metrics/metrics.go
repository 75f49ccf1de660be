// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the stream gateway.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	sessionsStartedTotal  prometheus.Counter
	sessionsEvictedTotal  prometheus.Counter
	bootstrapServedTotal  prometheus.Counter
	relayTranscodesTotal  prometheus.Counter
	relayPassthroughTotal prometheus.Counter
	activeSessions        prometheus.Gauge
}

// New creates and registers Prometheus metrics for the gateway.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		sessionsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_sessions_started_total",
			Help: "Total number of transcode sessions started",
		}),
		sessionsEvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_sessions_evicted_total",
			Help: "Total number of transcode sessions evicted for idleness",
		}),
		bootstrapServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_bootstrap_served_total",
			Help: "Total number of bootstrap playlists served before session readiness",
		}),
		relayTranscodesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_relay_transcodes_total",
			Help: "Total number of radio relays that re-encoded the source",
		}),
		relayPassthroughTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamgate_relay_passthrough_total",
			Help: "Total number of radio relays that proxied the source unmodified",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamgate_active_sessions",
			Help: "Number of live transcode sessions",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.sessionsStartedTotal,
		m.sessionsEvictedTotal,
		m.bootstrapServedTotal,
		m.relayTranscodesTotal,
		m.relayPassthroughTotal,
		m.activeSessions,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors increments the error response counter.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

// IncSessionsStarted increments the sessions started counter.
func (m *Metrics) IncSessionsStarted() { m.sessionsStartedTotal.Inc() }

// IncSessionsEvicted increments the idle eviction counter.
func (m *Metrics) IncSessionsEvicted() { m.sessionsEvictedTotal.Inc() }

// IncBootstrapServed increments the bootstrap playlist counter.
func (m *Metrics) IncBootstrapServed() { m.bootstrapServedTotal.Inc() }

// IncRelayTranscodes increments the transcoding relay counter.
func (m *Metrics) IncRelayTranscodes() { m.relayTranscodesTotal.Inc() }

// IncRelayPassthrough increments the passthrough relay counter.
func (m *Metrics) IncRelayPassthrough() { m.relayPassthroughTotal.Inc() }

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
