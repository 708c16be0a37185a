// SPDX-License-Identifier: MIT
//
// errors.go holds the sentinel errors and the typed ReferenceDataError.
//
// Error policy:
//   - Sentinels are package-level and never carry formatted parameters.
//   - Context (table, key) travels in ReferenceDataError; use errors.Is on the
//     sentinel and errors.As on *ReferenceDataError.

package refdata

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID indicates two rows of the same table share an ID.
	ErrDuplicateID = errors.New("refdata: duplicate id")

	// ErrUnknownKey indicates a foreign key that does not resolve.
	ErrUnknownKey = errors.New("refdata: unknown key")

	// ErrNegativeCount indicates a trip record with a negative count.
	ErrNegativeCount = errors.New("refdata: negative trip count")

	// ErrInvalidCurve indicates a level curve with negative, non-finite or all-zero shares.
	ErrInvalidCurve = errors.New("refdata: invalid level curve")

	// ErrInvalidShares indicates mode shares that are negative, repeated or do not sum to 1.
	ErrInvalidShares = errors.New("refdata: invalid mode shares")

	// ErrInvalidDuration indicates an activity duration outside [0, timebin.Count).
	ErrInvalidDuration = errors.New("refdata: invalid activity duration")

	// ErrUnknownPurpose indicates an unrecognized purpose label.
	ErrUnknownPurpose = errors.New("refdata: unknown purpose")

	// ErrUnknownMode indicates an unrecognized travel mode.
	ErrUnknownMode = errors.New("refdata: unknown mode")

	// ErrUnknownTransport indicates an unrecognized transport class.
	ErrUnknownTransport = errors.New("refdata: unknown transport")
)

// ReferenceDataError reports a malformed or inconsistent reference table row.
// It is fatal at startup.
type ReferenceDataError struct {
	Table string // table name, e.g. "trips"
	Key   string // offending row key, rendered for humans
	Err   error  // one of the sentinels above
}

func (e *ReferenceDataError) Error() string {
	return fmt.Sprintf("refdata: %s[%s]: %v", e.Table, e.Key, e.Err)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *ReferenceDataError) Unwrap() error { return e.Err }

// refErr builds a *ReferenceDataError with a formatted key.
func refErr(table string, err error, keyFormat string, args ...any) error {
	return &ReferenceDataError{Table: table, Key: fmt.Sprintf(keyFormat, args...), Err: err}
}
