// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"math"
	"time"
)

// Decision is the outcome of a single gate attempt. It is constructed
// fresh per call and never persisted.
type Decision struct {
	// Allowed reports whether the caller may proceed now.
	Allowed bool `json:"allowed"`

	// RetryAfter is the remaining life of the existing marker when the
	// attempt was denied. Zero whenever Allowed is true.
	RetryAfter time.Duration `json:"-"`
}

// RetryAfterSeconds returns the retry hint in whole seconds, rounded up
// so a denied caller never retries before the marker expires.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(retryAfter time.Duration) Decision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}
