// Package storage provides the SQLite persistence layer for the compliance engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/compliance-intelligence/internal/fingerprint"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// Validation errors.
var (
	ErrNilContext            = errors.New("context cannot be nil")
	ErrEmptyString           = errors.New("string parameter cannot be empty")
	ErrNilParameter          = errors.New("parameter cannot be nil")
	ErrInvalidSolution       = errors.New("invalid cached solution")
	ErrInvalidClassification = errors.New("invalid classification")
	ErrInvalidFeedback       = errors.New("invalid feedback event")
	ErrInvalidLearningResult = errors.New("invalid learning result")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateSolution(sol *model.CachedSolution) error {
	if sol == nil {
		return fmt.Errorf("%w: solution", ErrNilParameter)
	}
	if !fingerprint.Valid(sol.Fingerprint) {
		return fmt.Errorf("%w: malformed fingerprint %q", ErrInvalidSolution, sol.Fingerprint)
	}
	if strings.TrimSpace(sol.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidSolution)
	}
	if strings.TrimSpace(sol.SolutionText) == "" {
		return fmt.Errorf("%w: missing solution text", ErrInvalidSolution)
	}
	if sol.SuccessRate < 0 || sol.SuccessRate > 1 {
		return fmt.Errorf("%w: success rate must be between 0 and 1", ErrInvalidSolution)
	}
	return nil
}

func validateClassification(c *model.Classification) error {
	if c == nil {
		return fmt.Errorf("%w: classification", ErrNilParameter)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidClassification)
	}
	if strings.TrimSpace(c.SubjectID) == "" {
		return fmt.Errorf("%w: missing subject ID", ErrInvalidClassification)
	}
	if !c.Confidence.Valid() {
		return fmt.Errorf("%w: confidence %q", ErrInvalidClassification, c.Confidence)
	}
	if !c.Severity.Valid() {
		return fmt.Errorf("%w: severity %q", ErrInvalidClassification, c.Severity)
	}
	if c.ImpactScore < 0 || c.ImpactScore > model.MaxImpactScore {
		return fmt.Errorf("%w: impact score %.2f out of range", ErrInvalidClassification, c.ImpactScore)
	}
	if strings.TrimSpace(c.PrimaryAction.Type) == "" {
		return fmt.Errorf("%w: missing primary action type", ErrInvalidClassification)
	}
	if c.ClassifiedAt.IsZero() {
		return fmt.Errorf("%w: missing classified_at", ErrInvalidClassification)
	}
	return nil
}

func validateFeedback(ev *model.FeedbackEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: feedback", ErrNilParameter)
	}
	if strings.TrimSpace(ev.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidFeedback)
	}
	if strings.TrimSpace(ev.ClassificationID) == "" {
		return fmt.Errorf("%w: missing classification ID", ErrInvalidFeedback)
	}
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: kind %q", ErrInvalidFeedback, ev.Kind)
	}
	if ev.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at", ErrInvalidFeedback)
	}
	return nil
}

func validateLearningResult(r *model.LearningCycleResult) error {
	if r == nil {
		return fmt.Errorf("%w: learning result", ErrNilParameter)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidLearningResult)
	}
	if r.ComputedAt.IsZero() {
		return fmt.Errorf("%w: missing computed_at", ErrInvalidLearningResult)
	}
	return nil
}
