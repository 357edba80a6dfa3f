// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Engine errors.
	ErrGenerationTimeout         = errors.New("generation timeout")
	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrInvalidFingerprintInput   = errors.New("invalid fingerprint input")
	ErrLearningCycleBusy         = errors.New("learning cycle busy")
	ErrFeedbackOrphaned          = errors.New("feedback orphaned")
	ErrInvalidInput              = errors.New("invalid input")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// retryable is implemented by errors that know whether a retry can succeed,
// such as reasoning service errors.
type retryable interface {
	Retryable() bool
}

// IsRetryable determines if an error should trigger a retry by the caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrGenerationTimeout) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	return false
}
