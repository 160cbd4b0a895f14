// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package gatekeeper

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"marketlens/platform/audit"
	"marketlens/platform/ratelimit"
)

// Throttle returns middleware that enforces the throttle policy per
// endpoint and caller. Denied requests get a 429 with a Retry-After
// header and a rate_limit audit event.
func Throttle(limiter *ratelimit.Limiter, policy *ratelimit.Policy, recorder *audit.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.Method + " " + r.URL.Path
			if exemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			rule := policy.RuleFor(endpoint)
			key := throttleKey(endpoint, r)

			if limiter.TooManyAttempts(r.Context(), key, rule.MaxAttempts, rule.Window()) {
				retryAfter := int(limiter.RemainingTime(r.Context(), key).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				userID := callerID(r)
				recorder.RecordRateLimitViolation(r.Context(), userID, endpoint, retryAfter)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"Too Many Requests","retry_after_seconds":%d}`, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// exemptPath reports whether a path bypasses throttling
func exemptPath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// throttleKey scopes the counter to the endpoint and the caller:
// the authenticated user when present, the client address otherwise
func throttleKey(endpoint string, r *http.Request) string {
	if user := r.Header.Get("X-User-ID"); user != "" {
		return endpoint + ":user:" + user
	}
	meta := audit.MetaFromContext(r.Context())
	if meta.IPAddress != "" {
		return endpoint + ":ip:" + meta.IPAddress
	}
	return endpoint + ":ip:" + r.RemoteAddr
}

func callerID(r *http.Request) *int64 {
	user := r.Header.Get("X-User-ID")
	if user == "" {
		return nil
	}
	id, err := strconv.ParseInt(user, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
