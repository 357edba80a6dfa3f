package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

func TestUpsertClassification_ReplacesAndKeepsID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	first, err := store.UpsertClassification(ctx, testClassification("id-1", "change-42", ""))
	if err != nil {
		t.Fatalf("UpsertClassification failed: %v", err)
	}

	replacement := testClassification("id-2", "change-42", "")
	replacement.Severity = model.SeverityLow
	replacement.ActionRequired = false
	replacement.ClassifiedAt = first.ClassifiedAt.Add(time.Minute)

	second, err := store.UpsertClassification(ctx, replacement)
	if err != nil {
		t.Fatalf("second UpsertClassification failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected ID %s to be kept, got %s", first.ID, second.ID)
	}
	if second.Severity != model.SeverityLow || second.ActionRequired {
		t.Errorf("Expected replaced fields, got severity=%s action_required=%v", second.Severity, second.ActionRequired)
	}

	all, err := store.ListClassifications(ctx, "")
	if err != nil {
		t.Fatalf("ListClassifications failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected exactly one global classification, got %d", len(all))
	}

	history, err := store.CountClassificationHistory(ctx, "change-42", "")
	if err != nil {
		t.Fatalf("CountClassificationHistory failed: %v", err)
	}
	if history != 2 {
		t.Errorf("Expected 2 history entries, got %d", history)
	}
}

func TestUpsertClassification_ScopesAreIndependent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.UpsertClassification(ctx, testClassification("global", "change-7", "")); err != nil {
		t.Fatalf("global upsert failed: %v", err)
	}
	if _, err := store.UpsertClassification(ctx, testClassification("tenant", "change-7", "tenant-a")); err != nil {
		t.Fatalf("tenant upsert failed: %v", err)
	}

	global, err := store.GetClassification(ctx, "change-7", "")
	if err != nil {
		t.Fatalf("GetClassification global failed: %v", err)
	}
	tenant, err := store.GetClassification(ctx, "change-7", "tenant-a")
	if err != nil {
		t.Fatalf("GetClassification tenant failed: %v", err)
	}
	if global.ID == tenant.ID {
		t.Error("Expected distinct rows per scope")
	}
	if len(tenant.SecondaryActions) != 1 || tenant.SecondaryActions[0].Type != "notify_team" {
		t.Errorf("Secondary actions not round-tripped: %+v", tenant.SecondaryActions)
	}

	if _, err := store.GetClassification(ctx, "change-7", "tenant-b"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown scope, got %v", err)
	}
}

func TestUpsertClassification_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	tests := []struct {
		mutate func(*model.Classification)
		name   string
	}{
		{name: "missing subject", mutate: func(c *model.Classification) { c.SubjectID = "" }},
		{name: "bad confidence", mutate: func(c *model.Classification) { c.Confidence = "certain" }},
		{name: "bad severity", mutate: func(c *model.Classification) { c.Severity = "apocalyptic" }},
		{name: "impact out of range", mutate: func(c *model.Classification) { c.ImpactScore = 11 }},
		{name: "missing action type", mutate: func(c *model.Classification) { c.PrimaryAction.Type = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClassification("id", "change-1", "")
			tt.mutate(c)
			_, err := store.UpsertClassification(context.Background(), c)
			if !errors.Is(err, ErrInvalidClassification) {
				t.Errorf("Expected ErrInvalidClassification, got %v", err)
			}
		})
	}
}
