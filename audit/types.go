// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"math"
	"time"
)

// EventType identifies the kind of a recorded event. The set is closed:
// values outside it are rejected at write time.
type EventType string

const (
	EventLLMRequest EventType = "llm_request"
	EventRateLimit  EventType = "rate_limit"
	EventError      EventType = "error"
	EventUserAction EventType = "user_action"
)

// Severity classifies an event for filtering and alerting
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

const (
	// maxTraceLen caps stored stack traces, in runes
	maxTraceLen = 2000

	// truncationMarker is appended to a trace that was cut
	truncationMarker = "... [truncated]"
)

// Event is one immutable record in the usage trail. Events are append-only:
// nothing updates or deletes them in normal operation.
type Event struct {
	ID        string                 `json:"id"`
	UserID    *int64                 `json:"user_id,omitempty"`
	Type      EventType              `json:"event_type"`
	Context   map[string]interface{} `json:"context"`
	Severity  Severity               `json:"severity"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// TrailQuery filters a trail read. Zero-valued filters are no-ops; the
// supplied filters are conjunctive.
type TrailQuery struct {
	UserID     *int64    `json:"user_id,omitempty"`
	Type       EventType `json:"event_type,omitempty"`
	Severity   Severity  `json:"severity,omitempty"`
	WithinDays int       `json:"within_days,omitempty"` // default 30
	Limit      int       `json:"limit,omitempty"`       // default 100
}

// ErrorStats summarizes error events over a trailing window
type ErrorStats struct {
	TotalErrors      int64          `json:"total_errors"`
	CriticalErrors   int64          `json:"critical_errors"`
	ErrorRatePercent float64        `json:"error_rate_percent"`
	TopErrorContexts []LabelCount   `json:"top_error_contexts"`
}

// LabelCount is one entry in a frequency ranking
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// LLMUsageStats summarizes LLM request events over a trailing window
type LLMUsageStats struct {
	TotalRequests          int64   `json:"total_requests"`
	TotalCostUSD           float64 `json:"total_cost_usd"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	RequestsPerDay         float64 `json:"requests_per_day"`
}

// RateLimitStats summarizes rate limit violations over a trailing window
type RateLimitStats struct {
	TotalViolations  int64           `json:"total_violations"`
	UniqueUsers      int64           `json:"unique_users"`
	ViolationsPerDay float64         `json:"violations_per_day"`
	TopViolators     []ViolatorCount `json:"top_violators"`
}

// ViolatorCount is one user's violation tally
type ViolatorCount struct {
	UserID int64 `json:"user_id"`
	Count  int64 `json:"count"`
}

// ValidType reports whether t is in the closed event type enumeration
func ValidType(t EventType) bool {
	switch t {
	case EventLLMRequest, EventRateLimit, EventError, EventUserAction:
		return true
	}
	return false
}

// ValidSeverity reports whether s is in the closed severity enumeration
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// roundTo rounds v to the given number of decimal places
func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// truncateTrace caps a trace at maxTraceLen runes, appending the
// truncation marker when it was cut
func truncateTrace(trace string) string {
	runes := []rune(trace)
	if len(runes) <= maxTraceLen {
		return trace
	}
	return string(runes[:maxTraceLen]) + truncationMarker
}
