// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import "errors"

var (
	// ErrInvalidEventType is returned when an event type is outside the
	// closed enumeration
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrInvalidSeverity is returned when a severity is outside the
	// closed enumeration
	ErrInvalidSeverity = errors.New("invalid severity")

	// ErrInvalidWindow is returned for a non-positive withinDays window
	ErrInvalidWindow = errors.New("window must be at least 1 day")

	// ErrNilEvent is returned when a nil event reaches the repository
	ErrNilEvent = errors.New("event is nil")
)
