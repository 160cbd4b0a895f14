// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockDB(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresRepositoryNoBootstrap(db), mock
}

func TestInsertEvent(t *testing.T) {
	repo, mock := newMockDB(t)
	userID := int64(42)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(
			"evt-1",
			sqlmock.AnyArg(),
			"user_action",
			sqlmock.AnyArg(),
			"info",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertEvent(context.Background(), &Event{
		ID:        "evt-1",
		UserID:    &userID,
		Type:      EventUserAction,
		Severity:  SeverityInfo,
		Context:   map[string]interface{}{"action": "login"},
		IPAddress: "203.0.113.9",
		UserAgent: "marketlens-web/2.1",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertEventNil(t *testing.T) {
	repo, _ := newMockDB(t)
	if err := repo.InsertEvent(context.Background(), nil); err != ErrNilEvent {
		t.Errorf("error = %v, want ErrNilEvent", err)
	}
}

func TestQueryTrailBuildsConjunctiveFilters(t *testing.T) {
	repo, mock := newMockDB(t)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	userID := int64(42)
	createdAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "event_type", "context", "severity",
		"ip_address", "user_agent", "created_at",
	}).AddRow(
		"evt-1", userID, "rate_limit", []byte(`{"endpoint":"analysis.create"}`),
		"warning", "203.0.113.9", "marketlens-web/2.1", createdAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM audit_events WHERE created_at >= \\$1 AND user_id = \\$2 AND event_type = \\$3 AND severity = \\$4 ORDER BY created_at DESC LIMIT \\$5").
		WithArgs(since, userID, "rate_limit", "warning", 100).
		WillReturnRows(rows)

	q := TrailQuery{
		UserID:   &userID,
		Type:     EventRateLimit,
		Severity: SeverityWarning,
	}
	events, err := repo.QueryTrail(context.Background(), q, since, 100)
	if err != nil {
		t.Fatalf("QueryTrail failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	event := events[0]
	if event.ID != "evt-1" || *event.UserID != 42 {
		t.Errorf("unexpected event identity: %+v", event)
	}
	if event.Context["endpoint"] != "analysis.create" {
		t.Errorf("context not unmarshaled: %v", event.Context)
	}
	if event.IPAddress != "203.0.113.9" {
		t.Errorf("ip_address = %q", event.IPAddress)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQueryTrailOmitsAbsentFilters(t *testing.T) {
	repo, mock := newMockDB(t)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM audit_events WHERE created_at >= \\$1 ORDER BY created_at DESC LIMIT \\$2").
		WithArgs(since, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "event_type", "context", "severity",
			"ip_address", "user_agent", "created_at",
		}))

	events, err := repo.QueryTrail(context.Background(), TrailQuery{}, since, 50)
	if err != nil {
		t.Fatalf("QueryTrail failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCountErrors(t *testing.T) {
	repo, mock := newMockDB(t)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\),").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "critical"}).AddRow(12, 3))

	total, critical, err := repo.CountErrors(context.Background(), since)
	if err != nil {
		t.Fatalf("CountErrors failed: %v", err)
	}
	if total != 12 || critical != 3 {
		t.Errorf("got total=%d critical=%d, want 12/3", total, critical)
	}
}

func TestTopErrorLabelsOrdering(t *testing.T) {
	repo, mock := newMockDB(t)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("ORDER BY COUNT\\(\\*\\) DESC, MIN\\(created_at\\) ASC").
		WithArgs(since, 5).
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).
			AddRow("db", 9).
			AddRow("quote-fetcher", 4))

	labels, err := repo.TopErrorLabels(context.Background(), since, 5)
	if err != nil {
		t.Fatalf("TopErrorLabels failed: %v", err)
	}
	if len(labels) != 2 || labels[0].Label != "db" || labels[0].Count != 9 {
		t.Errorf("unexpected labels: %+v", labels)
	}
}

func TestLLMUsageTotals(t *testing.T) {
	repo, mock := newMockDB(t)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE event_type = 'llm_request'").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "cost", "duration"}).
			AddRow(25, 1.2345, 61.5))

	requests, cost, duration, err := repo.LLMUsageTotals(context.Background(), since)
	if err != nil {
		t.Fatalf("LLMUsageTotals failed: %v", err)
	}
	if requests != 25 || cost != 1.2345 || duration != 61.5 {
		t.Errorf("got %d/%v/%v", requests, cost, duration)
	}
}

func TestRateLimitTotalsAndTopViolators(t *testing.T) {
	repo, mock := newMockDB(t)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE event_type = 'rate_limit'").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "users"}).AddRow(40, 7))

	violations, users, err := repo.RateLimitTotals(context.Background(), since)
	if err != nil {
		t.Fatalf("RateLimitTotals failed: %v", err)
	}
	if violations != 40 || users != 7 {
		t.Errorf("got %d/%d, want 40/7", violations, users)
	}

	mock.ExpectQuery("GROUP BY user_id").
		WithArgs(since, 5).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "count"}).
			AddRow(42, 18).
			AddRow(7, 9))

	violators, err := repo.TopViolators(context.Background(), since, 5)
	if err != nil {
		t.Fatalf("TopViolators failed: %v", err)
	}
	if len(violators) != 2 || violators[0].UserID != 42 || violators[0].Count != 18 {
		t.Errorf("unexpected violators: %+v", violators)
	}
}
