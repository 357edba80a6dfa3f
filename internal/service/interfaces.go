// Package service defines the interfaces shared between engine components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// SolutionStore persists cached solutions. Implementations return
// common.ErrNotFound for unknown fingerprints.
type SolutionStore interface {
	GetSolution(ctx context.Context, fingerprint string) (*model.CachedSolution, error)
	GetSolutions(ctx context.Context, fingerprints []string) (map[string]*model.CachedSolution, error)
	ListSolutions(ctx context.Context) ([]model.CachedSolution, error)
	// CreateSolution inserts a new row; an existing fingerprint yields common.ErrDuplicateEntry.
	CreateSolution(ctx context.Context, solution *model.CachedSolution) error
	// TouchSolution increments usage_count, sets last_used_at and returns the updated row.
	TouchSolution(ctx context.Context, fingerprint string, usedAt time.Time) (*model.CachedSolution, error)
	// UpdateSuccessRate replaces success_rate with update(old) and returns the stored value.
	UpdateSuccessRate(ctx context.Context, fingerprint string, update func(old float64) float64) (float64, error)
}

// ClassificationStore persists classifications keyed by (subject, scope).
type ClassificationStore interface {
	// UpsertClassification inserts or replaces the classification for its
	// (SubjectID, Scope) pair and returns the stored row.
	UpsertClassification(ctx context.Context, classification *model.Classification) (*model.Classification, error)
	GetClassification(ctx context.Context, subjectID, scope string) (*model.Classification, error)
	GetClassificationByID(ctx context.Context, id string) (*model.Classification, error)
	ListClassifications(ctx context.Context, scope string) ([]model.Classification, error)
	CountClassificationHistory(ctx context.Context, subjectID, scope string) (int, error)
}

// FeedbackStore persists feedback events.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, event *model.FeedbackEvent) error
	GetFeedbackSamples(ctx context.Context, since time.Time) ([]model.FeedbackSample, error)
	ArchiveFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountFeedback(ctx context.Context) (int, error)
}

// LearningStore persists learning cycle results.
type LearningStore interface {
	SaveLearningResult(ctx context.Context, result *model.LearningCycleResult) error
	GetLatestLearningResult(ctx context.Context) (*model.LearningCycleResult, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	SolutionStore
	ClassificationStore
	FeedbackStore
	LearningStore

	// Database management
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
