// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository implements Repository over PostgreSQL, with the
// event context stored as JSONB.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over an existing connection
// pool and ensures the audit_events table exists.
func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	repo := &PostgresRepository{db: db}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create audit tables: %w", err)
	}
	return repo, nil
}

// NewPostgresRepositoryNoBootstrap skips schema creation (tests, or
// deployments that manage migrations externally)
func NewPostgresRepositoryNoBootstrap(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR(64) PRIMARY KEY,
		user_id BIGINT,
		event_type VARCHAR(32) NOT NULL,
		context JSONB NOT NULL DEFAULT '{}',
		severity VARCHAR(16) NOT NULL DEFAULT 'info',
		ip_address VARCHAR(64),
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_severity ON audit_events(severity);
	`

	if _, err := r.db.Exec(query); err != nil {
		return err
	}

	log.Printf("[AUDIT] audit_events table ready")
	return nil
}

// InsertEvent appends one event
func (r *PostgresRepository) InsertEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrNilEvent
	}

	contextJSON, err := json.Marshal(event.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal event context: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, user_id, event_type, context, severity,
			ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID, nullInt64(event.UserID), string(event.Type), contextJSON,
		string(event.Severity), nullString(event.IPAddress),
		nullString(event.UserAgent), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// QueryTrail returns matching events, newest first
func (r *PostgresRepository) QueryTrail(ctx context.Context, q TrailQuery, since time.Time, limit int) ([]Event, error) {
	query := `
		SELECT id, user_id, event_type, context, severity,
			   ip_address, user_agent, created_at
		FROM audit_events
		WHERE created_at >= $1
	`

	args := []interface{}{since}
	argIndex := 2

	if q.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *q.UserID)
		argIndex++
	}
	if q.Type != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIndex)
		args = append(args, string(q.Type))
		argIndex++
	}
	if q.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIndex)
		args = append(args, string(q.Severity))
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var event Event
		var userID sql.NullInt64
		var ipAddress, userAgent sql.NullString
		var contextJSON []byte

		err := rows.Scan(
			&event.ID, &userID, &event.Type, &contextJSON, &event.Severity,
			&ipAddress, &userAgent, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		if userID.Valid {
			uid := userID.Int64
			event.UserID = &uid
		}
		event.IPAddress = ipAddress.String
		event.UserAgent = userAgent.String

		if err := json.Unmarshal(contextJSON, &event.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event context: %w", err)
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit trail rows: %w", err)
	}

	return events, nil
}

// CountEvents counts events of any type in the window
func (r *PostgresRepository) CountEvents(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE created_at >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// CountErrors counts total and critical error events in the window
func (r *PostgresRepository) CountErrors(ctx context.Context, since time.Time) (int64, int64, error) {
	var total, critical int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			   COUNT(*) FILTER (WHERE severity = 'critical')
		FROM audit_events
		WHERE event_type = 'error' AND created_at >= $1
	`, since).Scan(&total, &critical)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count errors: %w", err)
	}
	return total, critical, nil
}

// TopErrorLabels ranks error context labels by frequency, oldest-first on
// ties
func (r *PostgresRepository) TopErrorLabels(ctx context.Context, since time.Time, limit int) ([]LabelCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(context->>'label', ''), COUNT(*)
		FROM audit_events
		WHERE event_type = 'error' AND created_at >= $1
		GROUP BY context->>'label'
		ORDER BY COUNT(*) DESC, MIN(created_at) ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank error labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var labels []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan error label: %w", err)
		}
		labels = append(labels, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read error label rows: %w", err)
	}

	return labels, nil
}

// LLMUsageTotals sums llm_request counters in the window
func (r *PostgresRepository) LLMUsageTotals(ctx context.Context, since time.Time) (int64, float64, float64, error) {
	var requests int64
	var costUSD, durationSeconds float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			   COALESCE(SUM((context->>'cost_usd')::numeric), 0),
			   COALESCE(SUM((context->>'duration_seconds')::numeric), 0)
		FROM audit_events
		WHERE event_type = 'llm_request' AND created_at >= $1
	`, since).Scan(&requests, &costUSD, &durationSeconds)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to sum llm usage: %w", err)
	}
	return requests, costUSD, durationSeconds, nil
}

// RateLimitTotals counts violations and distinct users in the window
func (r *PostgresRepository) RateLimitTotals(ctx context.Context, since time.Time) (int64, int64, error) {
	var violations, uniqueUsers int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM audit_events
		WHERE event_type = 'rate_limit' AND created_at >= $1
	`, since).Scan(&violations, &uniqueUsers)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rate limit violations: %w", err)
	}
	return violations, uniqueUsers, nil
}

// TopViolators ranks users by violation count, oldest-first on ties
func (r *PostgresRepository) TopViolators(ctx context.Context, since time.Time, limit int) ([]ViolatorCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*)
		FROM audit_events
		WHERE event_type = 'rate_limit' AND created_at >= $1 AND user_id IS NOT NULL
		GROUP BY user_id
		ORDER BY COUNT(*) DESC, MIN(created_at) ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank violators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var violators []ViolatorCount
	for rows.Next() {
		var vc ViolatorCount
		if err := rows.Scan(&vc.UserID, &vc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan violator: %w", err)
		}
		violators = append(violators, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read violator rows: %w", err)
	}

	return violators, nil
}

// Ping verifies the database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
