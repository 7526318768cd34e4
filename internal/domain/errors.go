package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the repo, engine and server layers. Callers
// dispatch with errors.Is / errors.As; no layer swallows an error and
// proceeds.

var (
	// ErrNotFound: the referenced conditional or task does not exist for
	// this owner. Not retryable.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved: the conditional is terminal. Resolving or editing
	// it again is rejected without touching any task.
	ErrAlreadyResolved = errors.New("conditional already resolved")

	// ErrOutcomeNotFound: the selected outcome id is not in the
	// conditional's outcome list.
	ErrOutcomeNotFound = errors.New("outcome not found")
)

// ValidationError rejects malformed input before any write happens.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

func Validationf(code, format string, args ...any) ValidationError {
	return ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// StoreError wraps a transient store failure (read, query or batch commit)
// with the operation that attempted it, so callers can decide to retry. The
// engine itself never retries; one call is at most one batch attempt.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error {
	return e.Err
}
