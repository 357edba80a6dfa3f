package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/fingerprint"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// createTestStorage opens a migrated database in a temporary directory.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func testSolution(t *testing.T, category, title, description string) *model.CachedSolution {
	t.Helper()
	fp, err := fingerprint.Compute(category, title, description)
	if err != nil {
		t.Fatalf("Failed to compute fingerprint: %v", err)
	}
	return &model.CachedSolution{
		Fingerprint:  fp,
		Category:     category,
		Title:        title,
		Description:  description,
		SolutionText: "add the missing contact details",
		ModelVersion: "test-model",
		SearchTokens: []string{"impressum", "missing"},
		SuccessRate:  model.DefaultSuccessPrior,
	}
}

func testClassification(id, subjectID, scope string) *model.Classification {
	return &model.Classification{
		ID:             id,
		SubjectID:      subjectID,
		Scope:          scope,
		ActionRequired: true,
		Confidence:     model.ConfidenceHigh,
		Severity:       model.SeverityHigh,
		ImpactScore:    6.5,
		PrimaryAction: model.Action{
			Type:     "update_document",
			Priority: model.PriorityHigh,
			Title:    "Update privacy policy",
		},
		SecondaryActions: []model.Action{{Type: "notify_team", Priority: model.PriorityLow}},
		ModelVersion:     "test-model",
		ClassifiedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	if !errors.Is(err, ErrEmptyString) {
		t.Errorf("Expected ErrEmptyString, got %v", err)
	}
}

func TestNewSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory storage: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate in-memory storage: %v", err)
	}

	count, err := store.CountFeedback(context.Background())
	if err != nil {
		t.Fatalf("CountFeedback failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty feedback table, got %d", count)
	}
}

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		wantErr error
		name    string
	}{
		{name: "valid context", ctx: context.Background()},
		{name: "nil context", ctx: nil, wantErr: ErrNilContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx) //nolint:staticcheck // nil context is the case under test
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateContext() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNotFoundErrors(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.GetSolution(ctx, "deadbeef"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetSolution: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetClassificationByID(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetClassificationByID: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetLatestLearningResult(ctx); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetLatestLearningResult: expected ErrNotFound, got %v", err)
	}
}
