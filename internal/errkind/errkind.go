// Package errkind classifies orchestrator errors into the four kinds the
// Unit of Work and graph executor reason about when deciding rollback scope
// and retry eligibility.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is the classification of an error for rollback/retry purposes.
type Kind string

const (
	// Recoverable errors (transient network/DB/timeout failures) may be
	// retried by the caller; only the innermost savepoint rolls back.
	Recoverable Kind = "recoverable"
	// Validation errors indicate malformed agent output or a violated
	// invariant; not retryable, only the innermost savepoint rolls back.
	Validation Kind = "validation"
	// System errors (corrupted state, out of resources) roll back the
	// entire enclosing transaction.
	System Kind = "system"
	// Unknown errors are treated conservatively like System.
	Unknown Kind = "unknown"
)

// AppError is the orchestrator's classified error type. Not every failure
// goes through it: the storage and checkpoint not-found sentinels, for
// example, are plain errors.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
	Details string
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Details != "" {
		msg += fmt.Sprintf(" (%s)", e.Details)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with no underlying cause.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap creates an AppError that preserves an underlying cause.
func Wrap(err error, kind Kind, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) *AppError {
	return Wrap(err, kind, fmt.Sprintf(format, args...))
}

// WithDetails attaches additional context, returning the same error for chaining.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf is WithDetails with a formatted string.
func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Classify determines the Kind of an arbitrary error. Errors already wrapped
// as *AppError keep their kind; anything else is Unknown.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Unknown
}

// RollsBackWholeTransaction reports whether an error of this kind must abort
// the entire enclosing Unit of Work rather than just the innermost savepoint.
func RollsBackWholeTransaction(k Kind) bool {
	switch k {
	case Recoverable, Validation:
		return false
	default: // System, Unknown
		return true
	}
}

// Retryable reports whether the graph executor may retry the node that
// produced an error of this kind (at most twice, per the backoff policy).
func Retryable(k Kind) bool {
	return k == Recoverable
}
