// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package db

import "errors"

// ErrNotConfigured is returned when a session is requested without a
// database URL in the settings.
var ErrNotConfigured = errors.New("database URL is not configured")

// ErrNoPlan is returned when an EXPLAIN statement succeeds but yields no
// plan rows. A successful explain always produces at least one plan, so an
// empty result is a sanity-check failure, not an empty result set.
var ErrNoPlan = errors.New("explain did not return a plan")

// Error describes a failed database operation.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "db." + e.Op + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return "db." + e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(op, message string, cause error) *Error {
	return &Error{Op: op, Message: message, Cause: cause}
}
