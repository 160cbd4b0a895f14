// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketlens_ratelimit_decisions_total",
			Help: "Rate limit decisions by outcome",
		},
		[]string{"outcome"},
	)
	storeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketlens_ratelimit_store_failures_total",
			Help: "Redis failures absorbed by the fail-open policy",
		},
	)
)

func init() {
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(storeFailuresTotal)
}
