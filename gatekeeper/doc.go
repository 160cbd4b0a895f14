// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

// Package gatekeeper wires the platform service together: Redis-backed
// rate limiting, the PostgreSQL audit trail, the statistics API, and the
// HTTP server with provenance and throttle middleware.
package gatekeeper
