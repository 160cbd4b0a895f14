// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

// Command gatekeeper runs the MarketLens platform service: rate limiting,
// audit trail recording, and usage statistics over Redis and PostgreSQL.
package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"marketlens/platform/gatekeeper"
)

func main() {
	if err := gatekeeper.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gatekeeper: %v\n", err)
		os.Exit(1)
	}
}
