/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package workflow

import "fmt"

// State is the state of a workflow validation.
type State int

// Workflow states. Failed is reachable from every other state.
const (
	StateCreated State = iota
	StateInputsValidated
	StateOutputValidated
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInputsValidated:
		return "inputs-validated"
	case StateOutputValidated:
		return "output-validated"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// next returns the state reached when the step run in s succeeds. Finalized and Failed are terminal.
func (s State) next() State {
	if s >= StateFinalized || s < StateCreated {
		return s
	}

	return s + 1
}

// noIndex marks failures that are not tied to an input item.
const noIndex = -1

// ValidationError is the failure of a workflow. Err, if set, is the underlying cause and may be matched
// with errors.Is/As.
type ValidationError struct {
	// Index of the failed input item, or -1.
	Index int
	// Field is the request field at fault, e.g. "documentId" or "algorithm".
	Field  string
	Reason string
	Err    error
	// From is the state the workflow was in when it failed.
	From State
}

func (e *ValidationError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("Error in input at index %d: %s", e.Index, e.Reason)
	}

	return e.Reason
}

// Unwrap returns the cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func fail(index int, field string, cause error, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Index:  index,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
		Err:    cause,
	}
}
