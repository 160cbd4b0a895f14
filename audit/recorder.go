// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"marketlens/platform/shared/logger"
)

// Recorder appends events to the usage trail. Recording never influences
// the caller's control flow: a failed write is logged and counted, not
// returned. The only errors a record operation surfaces are contract
// violations (invalid event type or severity), caught before persistence.
type Recorder struct {
	repo Repository
	log  *logger.Logger

	// overridable for tests
	now   func() time.Time
	newID func() string
}

// NewRecorder creates a Recorder over a durable event store
func NewRecorder(repo Repository, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.New("audit")
	}
	return &Recorder{
		repo:  repo,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// RecordLLMRequest records a completed LLM analysis request. Payload
// sizes are byte-length proxies, never the raw payloads. Duration is
// rounded to millisecond precision and cost to 4 decimal places.
func (r *Recorder) RecordLLMRequest(ctx context.Context, userID *int64, symbol string, requestBytes, responseBytes int, durationSeconds, costUSD float64) (*Event, error) {
	now := r.now()
	return r.record(ctx, &Event{
		UserID:   userID,
		Type:     EventLLMRequest,
		Severity: SeverityInfo,
		Context: map[string]interface{}{
			"symbol":           symbol,
			"request_bytes":    requestBytes,
			"response_bytes":   responseBytes,
			"duration_seconds": roundTo(durationSeconds, 3),
			"cost_usd":         roundTo(costUSD, 4),
			"timestamp":        now.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	})
}

// RecordRateLimitViolation records a denied attempt against an endpoint
func (r *Recorder) RecordRateLimitViolation(ctx context.Context, userID *int64, endpoint string, retryAfterSeconds int) (*Event, error) {
	now := r.now()
	meta := MetaFromContext(ctx)
	return r.record(ctx, &Event{
		UserID:   userID,
		Type:     EventRateLimit,
		Severity: SeverityWarning,
		Context: map[string]interface{}{
			"endpoint":            endpoint,
			"retry_after_seconds": retryAfterSeconds,
			"ip":                  meta.IPAddress,
			"timestamp":           now.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	})
}

// RecordError records an operational error under a human-readable label.
// The severity defaults to "error" when empty. The stored trace is the
// recording goroutine's stack, capped at 2000 characters.
func (r *Recorder) RecordError(ctx context.Context, label string, cause error, severity Severity, userID *int64) (*Event, error) {
	if severity == "" {
		severity = SeverityError
	}

	message := ""
	kind := ""
	if cause != nil {
		message = cause.Error()
		kind = fmt.Sprintf("%T", cause)
	}

	eventContext := map[string]interface{}{
		"label":   label,
		"message": message,
		"kind":    kind,
		"trace":   truncateTrace(string(debug.Stack())),
	}
	if _, file, line, ok := runtime.Caller(1); ok {
		eventContext["source"] = fmt.Sprintf("%s:%d", file, line)
	}

	return r.record(ctx, &Event{
		UserID:    userID,
		Type:      EventError,
		Severity:  severity,
		Context:   eventContext,
		CreatedAt: r.now(),
	})
}

// RecordUserAction records a user-initiated action with free-form metadata
func (r *Recorder) RecordUserAction(ctx context.Context, userID *int64, action string, metadata map[string]interface{}) (*Event, error) {
	now := r.now()
	eventContext := map[string]interface{}{
		"action":    action,
		"timestamp": now.Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		eventContext[k] = v
	}

	return r.record(ctx, &Event{
		UserID:    userID,
		Type:      EventUserAction,
		Severity:  SeverityInfo,
		Context:   eventContext,
		CreatedAt: now,
	})
}

// QueryTrail returns events matching the query's filters, newest first.
// WithinDays defaults to 30 and Limit to 100.
func (r *Recorder) QueryTrail(ctx context.Context, q TrailQuery) ([]Event, error) {
	if q.Type != "" && !ValidType(q.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, q.Type)
	}
	if q.Severity != "" && !ValidSeverity(q.Severity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeverity, q.Severity)
	}
	if q.WithinDays < 0 {
		return nil, ErrInvalidWindow
	}

	withinDays := q.WithinDays
	if withinDays == 0 {
		withinDays = 30
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	since := r.now().AddDate(0, 0, -withinDays)
	return r.repo.QueryTrail(ctx, q, since, limit)
}

// record validates, stamps, and persists one event. A persistence failure
// is swallowed here: logged, counted, and the built event returned so the
// caller's request path is never disturbed by the trail.
func (r *Recorder) record(ctx context.Context, event *Event) (*Event, error) {
	if !ValidType(event.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, event.Type)
	}
	if !ValidSeverity(event.Severity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeverity, event.Severity)
	}

	event.ID = r.newID()
	meta := MetaFromContext(ctx)
	event.IPAddress = meta.IPAddress
	event.UserAgent = meta.UserAgent

	if err := r.repo.InsertEvent(ctx, event); err != nil {
		writeFailuresTotal.Inc()
		r.log.ErrorWithErr("", "failed to record audit event", err, map[string]interface{}{
			"event_type": string(event.Type),
			"event_id":   event.ID,
		})
		return event, nil
	}

	eventsRecordedTotal.WithLabelValues(string(event.Type)).Inc()
	return event, nil
}
