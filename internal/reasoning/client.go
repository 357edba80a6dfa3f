// Package reasoning wraps the external reasoning service that produces
// solutions and classification payloads on a cache miss.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind selects what the reasoning service is asked to produce.
type Kind string

// Generation kinds.
const (
	KindSolution       Kind = "solution"
	KindClassification Kind = "classification"
)

// Input is the normalized issue sent to the reasoning service.
// Params carries kind-specific hints such as learned thresholds.
type Input struct {
	Params      map[string]string
	Category    string
	Title       string
	Description string
}

// Result is the raw answer of one generation.
type Result struct {
	Payload      string
	ModelVersion string
}

// Client defines the interface for reasoning providers.
type Client interface {
	Generate(ctx context.Context, kind Kind, input Input) (Result, error)
}

// Error classes.
var (
	ErrTransient = errors.New("transient reasoning failure")
	ErrPermanent = errors.New("permanent reasoning failure")
)

// Error is returned by every Client. Transient errors may succeed on retry.
type Error struct {
	Err       error
	Transient bool
}

func (e *Error) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("reasoning %s error: %v", class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrTransient or ErrPermanent according to the error class.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Transient
	case ErrPermanent:
		return !e.Transient
	}
	return false
}

// Retryable reports whether the failure is worth retrying.
func (e *Error) Retryable() bool {
	return e.Transient
}

// Transient wraps err as a transient reasoning failure.
func Transient(err error) error {
	return &Error{Err: err, Transient: true}
}

// Permanent wraps err as a permanent reasoning failure.
func Permanent(err error) error {
	return &Error{Err: err}
}

// Config holds provider settings.
type Config struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
	RateLimit     int
	MaxConcurrent int
}
