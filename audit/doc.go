// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

/*
Package audit provides the append-only usage trail and derived statistics
for the MarketLens platform.

The Recorder appends structured, immutable events — LLM requests, rate
limit violations, errors, user actions — to a durable store. Recording is
write-and-forget: a failed write is logged and counted but never surfaces
into the request path that produced the event. Validation failures (an
event type or severity outside the closed enumerations) are the exception,
and are returned to the caller before anything is persisted.

The Stats service computes read-only summaries over a trailing window:
error rates, LLM usage and cost totals, and rate limit violation rankings.
Unlike the write path, a failed read is returned to the caller; there is
no safe default for a wrong number.

Request provenance (client IP, user agent) is captured from the ambient
request context at record time. Mount the provenance middleware on the
HTTP router and every recorded event picks both up automatically:

	r := mux.NewRouter()
	r.Use(audit.ProvenanceMiddleware)
*/
package audit
