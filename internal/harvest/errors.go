// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three escalation levels. Typed errors below unwrap
// to these so callers can use errors.Is.
var (
	// ErrRetryExhausted means a lookup came back empty on every attempt.
	ErrRetryExhausted = errors.New("retries exhausted")

	// ErrSubjectFailed means one subject could not be resolved. The batch
	// absorbs it into the failed-subject set.
	ErrSubjectFailed = errors.New("subject failed")

	// ErrFatalFault means a worker group hit an error the batch could not
	// absorb. The pool flushes partial output before returning it.
	ErrFatalFault = errors.New("fatal fault")
)

// RetryExhaustedError identifies the lookup that ran out of attempts.
type RetryExhaustedError struct {
	Subject   string
	Operation string
	Attempts  int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s for %q: no result after %d attempts", e.Operation, e.Subject, e.Attempts)
}

// Unwrap returns ErrRetryExhausted.
func (e *RetryExhaustedError) Unwrap() error { return ErrRetryExhausted }

// SubjectFailedError names the subject whose job failed and why.
type SubjectFailedError struct {
	Subject string
	Err     error
}

func (e *SubjectFailedError) Error() string {
	return fmt.Sprintf("subject %q failed: %v", e.Subject, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *SubjectFailedError) Unwrap() []error { return []error{ErrSubjectFailed, e.Err} }

// FatalFaultError records which worker group faulted.
type FatalFaultError struct {
	Group int
	Err   error
}

func (e *FatalFaultError) Error() string {
	return fmt.Sprintf("group %d: %v", e.Group, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *FatalFaultError) Unwrap() []error { return []error{ErrFatalFault, e.Err} }
