// Package testutil provides shared test helpers: an isolated, migrated
// in-memory database and fixtures for seeding it.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/service"
	"github.com/Veraticus/compliance-intelligence/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	SkipMigrations bool
}

// SetupTestDB creates a new migrated in-memory database that is closed
// when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// NewClassification returns a valid classification fixture for subjectID in scope.
func NewClassification(subjectID, scope string) *model.Classification {
	return &model.Classification{
		ID:             uuid.NewString(),
		SubjectID:      subjectID,
		Scope:          scope,
		ActionRequired: true,
		Confidence:     model.ConfidenceHigh,
		Severity:       model.SeverityHigh,
		ImpactScore:    7,
		PrimaryAction: model.Action{
			Type:     "update_document",
			Priority: model.PriorityHigh,
			Title:    "Update your privacy policy",
		},
		Reasoning:      "fixture",
		UserImpactText: "Your privacy policy needs an update.",
		ModelVersion:   "test-model",
		ClassifiedAt:   time.Now().UTC(),
	}
}

// MustSeedClassification stores a classification fixture, applying mutate
// before the write, and returns the stored row.
func (db *TestDB) MustSeedClassification(subjectID, scope string, mutate ...func(*model.Classification)) *model.Classification {
	db.t.Helper()
	c := NewClassification(subjectID, scope)
	for _, fn := range mutate {
		fn(c)
	}
	stored, err := db.Storage.UpsertClassification(context.Background(), c)
	if err != nil {
		db.t.Fatalf("failed to seed classification %s/%s: %v", subjectID, scope, err)
	}
	return stored
}

// MustSeedFeedback stores n feedback events of kind for classificationID.
func (db *TestDB) MustSeedFeedback(classificationID string, kind model.FeedbackKind, n int, createdAt time.Time) {
	db.t.Helper()
	for i := 0; i < n; i++ {
		ev := &model.FeedbackEvent{
			ID:               uuid.NewString(),
			ClassificationID: classificationID,
			Kind:             kind,
			CreatedAt:        createdAt,
		}
		if err := db.Storage.SaveFeedback(context.Background(), ev); err != nil {
			db.t.Fatalf("failed to seed feedback: %v", err)
		}
	}
}
