// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for MarketLens platform
components.

Each entry is emitted as a single JSON line with a timestamp (RFC3339Nano),
level, component name, instance ID, optional request ID for correlation,
and free-form fields:

	{"timestamp":"2026-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"gatekeeper","instance_id":"gk-1","request_id":"req-456",
	 "message":"request allowed","fields":{"key":"quotes:user:42"}}

Create a logger per component and pass it to the services that need one:

	log := logger.New("gatekeeper")
	log.Warn("req-456", "store unreachable, failing open", map[string]interface{}{
	    "key": "quotes:user:42",
	})

Logger instances are safe for concurrent use.
*/
package logger
