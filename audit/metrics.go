// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	eventsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_audit_events_recorded_total",
			Help: "Audit events recorded, by event type",
		},
		[]string{"event_type"},
	)
	writeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketlens_audit_write_failures_total",
			Help: "Audit writes swallowed by the write-and-forget policy",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsRecordedTotal)
	prometheus.MustRegister(writeFailuresTotal)
}
