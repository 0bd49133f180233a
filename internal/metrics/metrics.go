// Package metrics exposes conversation counters for Prometheus. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message outcomes.
const (
	OutcomeHandled         = "handled"
	OutcomeDroppedCooldown = "dropped_cooldown"
	OutcomeIgnoredEmpty    = "ignored_empty"
	OutcomeFailed          = "failed"
)

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	registry      *prometheus.Registry
	messages      *prometheus.CounterVec
	orders        *prometheus.CounterVec
	sessionsEnded *prometheus.CounterVec
	sendFailures  *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zappi_messages_total",
			Help: "Inbound messages by tenant and outcome.",
		}, []string{"tenant", "outcome"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zappi_orders_total",
			Help: "Recorded orders by tenant and fulfillment type.",
		}, []string{"tenant", "fulfillment"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zappi_sessions_ended_total",
			Help: "Conversations that reached a terminal transition.",
		}, []string{"tenant"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zappi_send_failures_total",
			Help: "Outbound messages the transport failed to deliver.",
		}, []string{"tenant"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages,
		m.orders,
		m.sessionsEnded,
		m.sendFailures,
	)
	return m
}

// Message counts one inbound message.
func (m *Metrics) Message(tenant, outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(tenant, outcome).Inc()
}

// Order counts one recorded order.
func (m *Metrics) Order(tenant, fulfillment string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(tenant, fulfillment).Inc()
}

// SessionEnded counts one terminated conversation.
func (m *Metrics) SessionEnded(tenant string) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(tenant).Inc()
}

// SendFailure counts one failed outbound message.
func (m *Metrics) SendFailure(tenant string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(tenant).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and custom exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}
