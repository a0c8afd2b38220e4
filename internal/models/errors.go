package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roadmap-ai/orchestrator/internal/errkind"
)

// HandleError classifies a model backend's raw SDK error into the same
// errkind scheme the rest of the system reasons about, so a transient
// provider hiccup is retryable by the graph executor's node-retry loop
// exactly like any other recoverable error, while a bad key or an
// oversized prompt is not.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	var already *errkind.AppError
	if errors.As(err, &already) {
		return err
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, "401", "403", "unauthorized", "invalid api key", "api key", "forbidden") {
		return errkind.Wrap(err, errkind.Validation, "authentication failed")
	}

	if containsAny(errStr, "429", "rate limit", "quota", "too many requests") {
		return errkind.Wrap(err, errkind.Recoverable, "rate limited")
	}

	if containsAny(errStr, "context length", "too many tokens", "max tokens", "token limit") {
		return errkind.Wrap(err, errkind.Validation, "context too long")
	}

	if containsAny(errStr, "model not found", "404", "not found") {
		return errkind.Wrap(err, errkind.Validation, "model not found")
	}

	if containsAny(errStr, "connection", "eof", "timeout", "dial", "refused") {
		return errkind.Wrap(err, errkind.Recoverable, "connection error")
	}

	return errkind.Wrap(err, errkind.Unknown, "model call failed")
}

// ErrModelUnavailable indicates the model backend returned a non-JSON or error response.
type ErrModelUnavailable struct {
	Provider string
	Body     string // raw response body (truncated)
	Cause    error  // original error if any
}

func (e *ErrModelUnavailable) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("model %s unavailable: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("model %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Cause }

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
