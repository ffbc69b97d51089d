// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "accountd"

// Metrics are the service counters. A nil *Metrics is valid and records
// nothing, so callers never need to check whether metrics are enabled.
type Metrics struct {
	AuthOperations   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	LegacyHashLogins prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Authentication operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		LegacyHashLogins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legacy_hash_logins_total",
			Help:      "Logins verified against a legacy credential hash.",
		}),
	}
	reg.MustRegister(m.AuthOperations, m.HTTPRequests, m.LegacyHashLogins)
	return m
}

// RecordAuth counts one authentication outcome.
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordHTTP counts one served request. route is the matched pattern, never
// the raw path, so usernames stay out of label values.
func (m *Metrics) RecordHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordLegacyHash counts a login verified against a legacy hash.
func (m *Metrics) RecordLegacyHash() {
	if m == nil {
		return
	}
	m.LegacyHashLogins.Inc()
}
