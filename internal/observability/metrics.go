// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tollgate/tollgate/internal/auth"
)

// Auth outcome labels that are not error kinds.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics contains the Tollgate Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	AuthOutcomesTotal *prometheus.CounterVec
	HashDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the Tollgate metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		AuthOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_auth_outcomes_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tollgate_password_hash_duration_seconds",
				Help:    "Time spent hashing and verifying passwords",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.AuthOutcomesTotal, m.HashDuration)
	return m
}

// RecordRequest counts one handled HTTP request.
func (m *Metrics) RecordRequest(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordAuthOutcome counts the result of an auth operation. The outcome is
// "success", the error kind code, or "error" for infrastructure failures.
func (m *Metrics) RecordAuthOutcome(operation string, err error) {
	if m == nil {
		return
	}
	m.AuthOutcomesTotal.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome returns the outcome label for err.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if kind := auth.ErrorKind(err); kind != "" {
		return kind
	}
	return OutcomeError
}

func (m *Metrics) observeHash(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.HashDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// instrumentedHasher times Hash and Verify calls.
type instrumentedHasher struct {
	next    auth.PasswordHasher
	metrics *Metrics
}

// InstrumentHasher wraps h so that hash and verify latency is recorded in m.
func InstrumentHasher(h auth.PasswordHasher, m *Metrics) auth.PasswordHasher {
	if m == nil {
		return h
	}
	return &instrumentedHasher{next: h, metrics: m}
}

func (h *instrumentedHasher) Hash(password string) (string, error) {
	defer h.metrics.observeHash("hash", time.Now())
	//nolint:wrapcheck // decorator passes the hasher's error through unchanged
	return h.next.Hash(password)
}

func (h *instrumentedHasher) Verify(password, hash string) bool {
	defer h.metrics.observeHash("verify", time.Now())
	return h.next.Verify(password, hash)
}

func (h *instrumentedHasher) NeedsUpgrade(hash string) bool {
	return h.next.NeedsUpgrade(hash)
}
