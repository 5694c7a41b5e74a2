// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes daemon counters in Prometheus format.
//
// All Observe methods are safe on a nil *Metrics so callers can run with
// metrics disabled without guarding every call.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "macwall"

// Metrics holds all daemon Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	Commands         *prometheus.CounterVec
	Mutations        *prometheus.CounterVec
	Enforcement      *prometheus.CounterVec
	SaveFailures     prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	BlockedAddresses prometheus.Gauge
}

// New creates the metrics and registers them, with Go runtime and process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Protocol commands received, by command",
		}, []string{"command"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocklist_mutations_total",
			Help:      "Blocklist operations, by operation and result",
		}, []string{"op", "result"}),
		Enforcement: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enforcement_requests_total",
			Help:      "Packet filter requests, by operation and outcome",
		}, []string{"op", "outcome"}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocklist_save_failures_total",
			Help:      "Failed attempts to persist the blocklist",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Currently open client sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Client sessions accepted since start",
		}),
		BlockedAddresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocked_addresses",
			Help:      "Addresses currently in the blocklist",
		}),
	}

	m.registry.MustRegister(
		m.Commands,
		m.Mutations,
		m.Enforcement,
		m.SaveFailures,
		m.SessionsActive,
		m.SessionsTotal,
		m.BlockedAddresses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Register adds an extra collector, such as the nftables rule collector.
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(c)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveCommand(command string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command).Inc()
}

func (m *Metrics) ObserveMutation(op, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveEnforcement(op, outcome string) {
	if m == nil {
		return
	}
	m.Enforcement.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveSaveFailure() {
	if m == nil {
		return
	}
	m.SaveFailures.Inc()
}

func (m *Metrics) SetBlocked(n int) {
	if m == nil {
		return
	}
	m.BlockedAddresses.Set(float64(n))
}

// SessionOpened records an accepted session; the returned func marks it closed.
func (m *Metrics) SessionOpened() func() {
	if m == nil {
		return func() {}
	}
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
	return m.SessionsActive.Dec
}
