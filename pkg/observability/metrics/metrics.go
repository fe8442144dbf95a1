// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus metrics for the gateway: per-provider
// operation counters, failover counts, health gauges and probe latencies.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storagegw"

// Metrics holds the gateway's Prometheus collectors, registered on a
// private registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	failovers     *prometheus.CounterVec
	healthy       *prometheus.GaugeVec
	probeDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Storage operations executed, by provider, operation and outcome.",
		}, []string{"provider", "op", "status"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Fallback attempts after a primary provider failure.",
		}, []string{"from", "to"}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_healthy",
			Help:      "Last known provider health (1 healthy, 0 unhealthy).",
		}, []string{"provider"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_probe_duration_seconds",
			Help:      "Health probe latency per provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	registry.MustRegister(m.operations, m.failovers, m.healthy, m.probeDuration)
	return m
}

// RecordOperation counts one executed operation.
func (m *Metrics) RecordOperation(provider, op string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.operations.WithLabelValues(provider, op, status).Inc()
}

// RecordFailover counts one fallback attempt from one provider to another.
func (m *Metrics) RecordFailover(from, to string) {
	if m == nil {
		return
	}
	m.failovers.WithLabelValues(from, to).Inc()
}

// RecordHealth sets the health gauge for a provider.
func (m *Metrics) RecordHealth(provider string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.healthy.WithLabelValues(provider).Set(v)
}

// RecordProbe observes the duration of one health probe.
func (m *Metrics) RecordProbe(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.probeDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
