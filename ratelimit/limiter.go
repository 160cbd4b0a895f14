// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"marketlens/platform/shared/logger"
)

// keyPrefix namespaces every key the limiter writes so ClearAll cannot
// touch foreign data in a shared Redis database.
const keyPrefix = "ratelimit:"

// Limiter makes rate-limit decisions against a shared Redis store.
// It is stateless; any number of instances may be constructed over the
// same client.
type Limiter struct {
	client *redis.Client
	log    *logger.Logger
}

// NewLimiter creates a Limiter over an existing Redis client
func NewLimiter(client *redis.Client, log *logger.Logger) *Limiter {
	if log == nil {
		log = logger.New("ratelimit")
	}
	return &Limiter{client: client, log: log}
}

// Attempt atomically sets a marker for key if none exists, with the given
// TTL. The first caller in a window is allowed; everyone else is denied
// with the marker's remaining life as the retry hint. The gate self-clears
// when the TTL expires; no release call is needed.
//
// On Redis failure the request is allowed (fail open) and the error is
// logged.
func (l *Limiter) Attempt(ctx context.Context, key string, ttl time.Duration) Decision {
	ok, err := l.client.SetNX(ctx, l.storeKey(key), 1, ttl).Result()
	if err != nil {
		l.failOpen("attempt", key, err)
		return allow()
	}

	if ok {
		decisionsTotal.WithLabelValues("allowed").Inc()
		return allow()
	}

	remaining, err := l.client.TTL(ctx, l.storeKey(key)).Result()
	if err != nil {
		l.failOpen("attempt", key, err)
		return allow()
	}

	decisionsTotal.WithLabelValues("denied").Inc()
	return deny(remaining)
}

// Reset unconditionally deletes the marker for key. Deleting an absent
// key is not an error.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.storeKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset key %q: %w", key, err)
	}
	return nil
}

// RemainingTime returns how long the marker for key has left to live,
// or zero when the key is absent, expired, or the store is unreachable.
func (l *Limiter) RemainingTime(ctx context.Context, key string) time.Duration {
	remaining, err := l.client.TTL(ctx, l.storeKey(key)).Result()
	if err != nil {
		l.failOpen("remaining_time", key, err)
		return 0
	}
	// TTL reports negative durations for missing keys and keys without
	// an expiry
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsLocked reports whether a marker currently exists for key. Degrades to
// false when the store is unreachable.
func (l *Limiter) IsLocked(ctx context.Context, key string) bool {
	n, err := l.client.Exists(ctx, l.storeKey(key)).Result()
	if err != nil {
		l.failOpen("is_locked", key, err)
		return false
	}
	return n > 0
}

// Increment atomically increments the counter for key and returns the
// post-increment value. The expiry is set when the counter transitions
// from absent to 1, so the whole window shares one deadline.
//
// The expiry is a second round trip; two concurrent first-increments can
// both observe 1 and both set the same TTL, which is harmless. Returns 0
// on store failure.
func (l *Limiter) Increment(ctx context.Context, key string, ttl time.Duration) int64 {
	count, err := l.client.Incr(ctx, l.storeKey(key)).Result()
	if err != nil {
		l.failOpen("increment", key, err)
		return 0
	}

	if count == 1 {
		if err := l.client.Expire(ctx, l.storeKey(key), ttl).Err(); err != nil {
			l.failOpen("increment", key, err)
		}
	}

	return count
}

// TooManyAttempts records one attempt against key and reports whether the
// window's count now exceeds maxAttempts. It mutates the counter, so call
// it exactly once per attempt. Degrades to false on store failure.
func (l *Limiter) TooManyAttempts(ctx context.Context, key string, maxAttempts int64, ttl time.Duration) bool {
	count := l.Increment(ctx, key, ttl)
	if count == 0 {
		// Store failure already logged by Increment
		return false
	}
	if count > maxAttempts {
		decisionsTotal.WithLabelValues("denied").Inc()
		return true
	}
	decisionsTotal.WithLabelValues("allowed").Inc()
	return false
}

// ClearAll deletes every marker and counter under the limiter's prefix
// and returns the number of keys removed. The scan-then-delete is not
// atomic with respect to live traffic; this is an operational tool, not
// part of the decision path.
func (l *Limiter) ClearAll(ctx context.Context) (int, error) {
	var removed int

	iter := l.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete key %q: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan limiter keys: %w", err)
	}

	return removed, nil
}

func (l *Limiter) storeKey(key string) string {
	return keyPrefix + key
}

// failOpen records a store failure without letting it reach the caller
func (l *Limiter) failOpen(op, key string, err error) {
	storeFailuresTotal.Inc()
	l.log.Warn("", "rate limit store unavailable, failing open", map[string]interface{}{
		"operation": op,
		"key":       key,
		"error":     err.Error(),
	})
}
