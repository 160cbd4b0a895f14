// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockRepository implements Repository in memory for testing. Its
// aggregate methods mirror the SQL semantics of PostgresRepository,
// including the first-seen tiebreak on rankings.
type MockRepository struct {
	mu     sync.RWMutex
	events []Event

	// Error injection
	insertErr error
	readErr   error
	pingErr   error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// seed appends an event directly, bypassing the recorder
func (m *MockRepository) seed(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, copyEvent(event))
}

func (m *MockRepository) InsertEvent(ctx context.Context, event *Event) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, copyEvent(*event))
	return nil
}

func (m *MockRepository) QueryTrail(ctx context.Context, q TrailQuery, since time.Time, limit int) ([]Event, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Event
	for _, e := range m.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		if q.UserID != nil && (e.UserID == nil || *e.UserID != *q.UserID) {
			continue
		}
		if q.Type != "" && e.Type != q.Type {
			continue
		}
		if q.Severity != "" && e.Severity != q.Severity {
			continue
		}
		matched = append(matched, copyEvent(e))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MockRepository) CountEvents(ctx context.Context, since time.Time) (int64, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, e := range m.events {
		if !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockRepository) CountErrors(ctx context.Context, since time.Time) (int64, int64, error) {
	if m.readErr != nil {
		return 0, 0, m.readErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total, critical int64
	for _, e := range m.events {
		if e.Type != EventError || e.CreatedAt.Before(since) {
			continue
		}
		total++
		if e.Severity == SeverityCritical {
			critical++
		}
	}
	return total, critical, nil
}

func (m *MockRepository) TopErrorLabels(ctx context.Context, since time.Time, limit int) ([]LabelCount, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	firstSeen := make(map[string]time.Time)
	for _, e := range m.events {
		if e.Type != EventError || e.CreatedAt.Before(since) {
			continue
		}
		label, _ := e.Context["label"].(string)
		counts[label]++
		if seen, ok := firstSeen[label]; !ok || e.CreatedAt.Before(seen) {
			firstSeen[label] = e.CreatedAt
		}
	}

	labels := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		labels = append(labels, LabelCount{Label: label, Count: count})
	}
	sort.SliceStable(labels, func(i, j int) bool {
		if labels[i].Count != labels[j].Count {
			return labels[i].Count > labels[j].Count
		}
		return firstSeen[labels[i].Label].Before(firstSeen[labels[j].Label])
	})

	if len(labels) > limit {
		labels = labels[:limit]
	}
	return labels, nil
}

func (m *MockRepository) LLMUsageTotals(ctx context.Context, since time.Time) (int64, float64, float64, error) {
	if m.readErr != nil {
		return 0, 0, 0, m.readErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var requests int64
	var costUSD, durationSeconds float64
	for _, e := range m.events {
		if e.Type != EventLLMRequest || e.CreatedAt.Before(since) {
			continue
		}
		requests++
		if cost, ok := e.Context["cost_usd"].(float64); ok {
			costUSD += cost
		}
		if duration, ok := e.Context["duration_seconds"].(float64); ok {
			durationSeconds += duration
		}
	}
	return requests, costUSD, durationSeconds, nil
}

func (m *MockRepository) RateLimitTotals(ctx context.Context, since time.Time) (int64, int64, error) {
	if m.readErr != nil {
		return 0, 0, m.readErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var violations int64
	users := make(map[int64]bool)
	for _, e := range m.events {
		if e.Type != EventRateLimit || e.CreatedAt.Before(since) {
			continue
		}
		violations++
		if e.UserID != nil {
			users[*e.UserID] = true
		}
	}
	return violations, int64(len(users)), nil
}

func (m *MockRepository) TopViolators(ctx context.Context, since time.Time, limit int) ([]ViolatorCount, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[int64]int64)
	firstSeen := make(map[int64]time.Time)
	for _, e := range m.events {
		if e.Type != EventRateLimit || e.CreatedAt.Before(since) || e.UserID == nil {
			continue
		}
		counts[*e.UserID]++
		if seen, ok := firstSeen[*e.UserID]; !ok || e.CreatedAt.Before(seen) {
			firstSeen[*e.UserID] = e.CreatedAt
		}
	}

	violators := make([]ViolatorCount, 0, len(counts))
	for userID, count := range counts {
		violators = append(violators, ViolatorCount{UserID: userID, Count: count})
	}
	sort.SliceStable(violators, func(i, j int) bool {
		if violators[i].Count != violators[j].Count {
			return violators[i].Count > violators[j].Count
		}
		return firstSeen[violators[i].UserID].Before(firstSeen[violators[j].UserID])
	})

	if len(violators) > limit {
		violators = violators[:limit]
	}
	return violators, nil
}

func (m *MockRepository) Ping(ctx context.Context) error {
	return m.pingErr
}

func copyEvent(e Event) Event {
	clone := e
	if e.UserID != nil {
		uid := *e.UserID
		clone.UserID = &uid
	}
	if e.Context != nil {
		clone.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			clone.Context[k] = v
		}
	}
	return clone
}
