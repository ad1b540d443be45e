// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the yee application metrics. It satisfies session.Recorder
// and idalloc.Observer.
type Metrics struct {
	Logins         *prometheus.CounterVec
	Bootstraps     *prometheus.CounterVec
	Logouts        *prometheus.CounterVec
	AllocAttempts  prometheus.Histogram
	AllocExhausted prometheus.Counter
	SessionsSwept  prometheus.Counter
	RequestsTotal  *prometheus.CounterVec
	GuardDecisions *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yee_auth_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		Bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yee_auth_bootstraps_total",
			Help: "Session bootstraps by outcome",
		}, []string{"outcome"}),
		Logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yee_auth_logouts_total",
			Help: "Logouts by what happened to the remote session record",
		}, []string{"remote"}),
		AllocAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yee_idalloc_attempts",
			Help:    "Candidates generated per identifier allocation",
			Buckets: []float64{1, 2, 3, 5, 10},
		}),
		AllocExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yee_idalloc_exhausted_total",
			Help: "Identifier allocations that ran out of attempts",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yee_sessions_swept_total",
			Help: "Expired session records deleted by the sweeper",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yee_http_requests_total",
			Help: "HTTP requests by route and status class",
		}, []string{"route", "status"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yee_guard_decisions_total",
			Help: "Route guard decisions by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Logins, m.Bootstraps, m.Logouts,
		m.AllocAttempts, m.AllocExhausted,
		m.SessionsSwept, m.RequestsTotal, m.GuardDecisions,
	)
	return m
}

// LoginResult counts a login attempt.
func (m *Metrics) LoginResult(result string) { m.Logins.WithLabelValues(result).Inc() }

// BootstrapOutcome counts a settled bootstrap.
func (m *Metrics) BootstrapOutcome(outcome string) { m.Bootstraps.WithLabelValues(outcome).Inc() }

// LogoutRemote counts a logout.
func (m *Metrics) LogoutRemote(remote string) { m.Logouts.WithLabelValues(remote).Inc() }

// AllocationAttempts records how many candidates one allocation needed.
func (m *Metrics) AllocationAttempts(n int) { m.AllocAttempts.Observe(float64(n)) }

// AllocationExhausted counts an exhausted allocation.
func (m *Metrics) AllocationExhausted() { m.AllocExhausted.Inc() }

// SessionsDeleted adds n swept sessions.
func (m *Metrics) SessionsDeleted(n int64) { m.SessionsSwept.Add(float64(n)) }

// GuardDecision counts a route guard outcome.
func (m *Metrics) GuardDecision(outcome string) { m.GuardDecisions.WithLabelValues(outcome).Inc() }

// RequestServed counts a response. status is reduced to its class, e.g. "2xx".
func (m *Metrics) RequestServed(route string, status int) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
}
