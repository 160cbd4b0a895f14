// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"time"
)

// Repository defines the durable event store contract: append-only writes
// plus the windowed reads the trail and statistics services need.
type Repository interface {
	// InsertEvent appends one event. Events are never updated or deleted.
	InsertEvent(ctx context.Context, event *Event) error

	// QueryTrail returns events matching the query's conjunctive filters,
	// newest first, restricted to events at or after since, capped at limit.
	QueryTrail(ctx context.Context, q TrailQuery, since time.Time, limit int) ([]Event, error)

	// CountEvents returns the number of events of any type at or after since
	CountEvents(ctx context.Context, since time.Time) (int64, error)

	// CountErrors returns total and critical error-event counts at or
	// after since
	CountErrors(ctx context.Context, since time.Time) (total, critical int64, err error)

	// TopErrorLabels ranks error-event context labels by descending
	// frequency, ties broken by first occurrence, capped at limit
	TopErrorLabels(ctx context.Context, since time.Time, limit int) ([]LabelCount, error)

	// LLMUsageTotals returns request count, summed cost, and summed
	// duration for llm_request events at or after since
	LLMUsageTotals(ctx context.Context, since time.Time) (requests int64, costUSD, durationSeconds float64, err error)

	// RateLimitTotals returns violation count and distinct acting users
	// for rate_limit events at or after since
	RateLimitTotals(ctx context.Context, since time.Time) (violations, uniqueUsers int64, err error)

	// TopViolators ranks users by descending rate_limit violation count,
	// ties broken by first occurrence, capped at limit
	TopViolators(ctx context.Context, since time.Time, limit int) ([]ViolatorCount, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}
