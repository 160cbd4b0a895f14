// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

/*
Package ratelimit provides Redis-backed distributed rate limiting for the
MarketLens platform.

Two primitives are exposed. The gate (Attempt) admits exactly one caller
per key per TTL window using an atomic SET NX EX round trip, and clears
itself when the TTL expires. The counter (Increment, TooManyAttempts)
supports windowed attempt counting for limits above one per window.

Correctness across processes comes entirely from Redis: the limiter holds
no in-process state, so any number of instances may share one Redis
database.

The limiter fails open. If Redis is unreachable, Attempt allows the
request, IsLocked reports false, RemainingTime and Increment report zero,
and the failure is logged. An outage in the shared store must not turn
into a platform-wide denial of service.

	limiter := ratelimit.NewLimiter(client, logger.New("gatekeeper"))

	d := limiter.Attempt(ctx, "quotes:user:42", 60*time.Second)
	if !d.Allowed {
	    // translate d.RetryAfterSeconds() into a 429 with Retry-After
	}
*/
package ratelimit
