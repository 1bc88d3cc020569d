/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store

import "github.com/pkg/errors"

// Error is a failed database operation. It matches ErrUnavailable so callers can report an outage
// without inspecting the driver error.
type Error struct {
	Op  string
	Err error
}

// Error returns the operation and the driver error.
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the driver error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable //nolint:errorlint
}

// Wrap returns err as a failed database operation op. Errors that already report an outage are
// returned unchanged, nil stays nil.
func Wrap(err error, op string) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}

	return &Error{Op: op, Err: err}
}
