// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"fmt"
	"time"
)

// topN caps the ranked lists in statistics summaries
const topN = 5

// Stats computes read-only summaries over the recorded trail. Unlike the
// write path, failures here are surfaced: a wrong number is worse than an
// explicit error.
type Stats struct {
	repo Repository

	now func() time.Time
}

// NewStats creates a Stats service over a durable event store
func NewStats(repo Repository) *Stats {
	return &Stats{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// ErrorStats summarizes error events over the last withinDays days
func (s *Stats) ErrorStats(ctx context.Context, withinDays int) (*ErrorStats, error) {
	since, err := s.windowStart(withinDays)
	if err != nil {
		return nil, err
	}

	totalEvents, err := s.repo.CountEvents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("error stats: %w", err)
	}

	totalErrors, criticalErrors, err := s.repo.CountErrors(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("error stats: %w", err)
	}

	topContexts, err := s.repo.TopErrorLabels(ctx, since, topN)
	if err != nil {
		return nil, fmt.Errorf("error stats: %w", err)
	}

	// An empty window has a zero error rate, not a division by zero
	rate := 0.0
	if totalEvents > 0 {
		rate = roundTo(100*float64(totalErrors)/float64(totalEvents), 1)
	}

	return &ErrorStats{
		TotalErrors:      totalErrors,
		CriticalErrors:   criticalErrors,
		ErrorRatePercent: rate,
		TopErrorContexts: topContexts,
	}, nil
}

// LLMUsageStats summarizes llm_request events over the last withinDays days
func (s *Stats) LLMUsageStats(ctx context.Context, withinDays int) (*LLMUsageStats, error) {
	since, err := s.windowStart(withinDays)
	if err != nil {
		return nil, err
	}

	requests, costUSD, durationSeconds, err := s.repo.LLMUsageTotals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("llm usage stats: %w", err)
	}

	averageDuration := 0.0
	if requests > 0 {
		averageDuration = roundTo(durationSeconds/float64(requests), 2)
	}

	return &LLMUsageStats{
		TotalRequests:          requests,
		TotalCostUSD:           roundTo(costUSD, 2),
		AverageDurationSeconds: averageDuration,
		RequestsPerDay:         roundTo(float64(requests)/float64(withinDays), 1),
	}, nil
}

// RateLimitStats summarizes rate_limit events over the last withinDays days
func (s *Stats) RateLimitStats(ctx context.Context, withinDays int) (*RateLimitStats, error) {
	since, err := s.windowStart(withinDays)
	if err != nil {
		return nil, err
	}

	violations, uniqueUsers, err := s.repo.RateLimitTotals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("rate limit stats: %w", err)
	}

	topViolators, err := s.repo.TopViolators(ctx, since, topN)
	if err != nil {
		return nil, fmt.Errorf("rate limit stats: %w", err)
	}

	return &RateLimitStats{
		TotalViolations:  violations,
		UniqueUsers:      uniqueUsers,
		ViolationsPerDay: roundTo(float64(violations)/float64(withinDays), 1),
		TopViolators:     topViolators,
	}, nil
}

func (s *Stats) windowStart(withinDays int) (time.Time, error) {
	if withinDays < 1 {
		return time.Time{}, ErrInvalidWindow
	}
	return s.now().AddDate(0, 0, -withinDays), nil
}
