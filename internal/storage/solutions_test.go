package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

func TestCreateAndGetSolution(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sol := testSolution(t, "solution:legal", "Impressum missing", "No imprint page on the site")
	if err := store.CreateSolution(ctx, sol); err != nil {
		t.Fatalf("CreateSolution failed: %v", err)
	}

	got, err := store.GetSolution(ctx, sol.Fingerprint)
	if err != nil {
		t.Fatalf("GetSolution failed: %v", err)
	}
	if got.SolutionText != sol.SolutionText {
		t.Errorf("SolutionText = %q, want %q", got.SolutionText, sol.SolutionText)
	}
	if got.UsageCount != 0 {
		t.Errorf("UsageCount = %d, want 0", got.UsageCount)
	}
	if got.SuccessRate != 0.8 {
		t.Errorf("SuccessRate = %v, want 0.8", got.SuccessRate)
	}
	if len(got.SearchTokens) != 2 {
		t.Errorf("SearchTokens = %v, want 2 tokens", got.SearchTokens)
	}
}

func TestCreateSolution_Duplicate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sol := testSolution(t, "solution:legal", "Impressum missing", "No imprint page")
	if err := store.CreateSolution(ctx, sol); err != nil {
		t.Fatalf("CreateSolution failed: %v", err)
	}
	err := store.CreateSolution(ctx, sol)
	if !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry, got %v", err)
	}
}

func TestCreateSolution_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	sol := testSolution(t, "solution:legal", "Impressum missing", "No imprint page")
	sol.Fingerprint = "not-a-fingerprint"
	if err := store.CreateSolution(context.Background(), sol); !errors.Is(err, ErrInvalidSolution) {
		t.Errorf("Expected ErrInvalidSolution, got %v", err)
	}
}

func TestTouchSolution_ConcurrentCountsAreExact(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sol := testSolution(t, "solution:legal", "Cookie banner", "Banner lacks reject button")
	if err := store.CreateSolution(ctx, sol); err != nil {
		t.Fatalf("CreateSolution failed: %v", err)
	}

	const touches = 20
	var wg sync.WaitGroup
	for i := 0; i < touches; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.TouchSolution(ctx, sol.Fingerprint, time.Now()); err != nil {
				t.Errorf("TouchSolution failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetSolution(ctx, sol.Fingerprint)
	if err != nil {
		t.Fatalf("GetSolution failed: %v", err)
	}
	if got.UsageCount != touches {
		t.Errorf("UsageCount = %d, want %d", got.UsageCount, touches)
	}
	if got.LastUsedAt.Before(got.CreatedAt) {
		t.Errorf("LastUsedAt %v before CreatedAt %v", got.LastUsedAt, got.CreatedAt)
	}
}

func TestTouchSolution_Unknown(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.TouchSolution(context.Background(), "unknown", time.Now())
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSuccessRate_Clamps(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	sol := testSolution(t, "solution:legal", "Cookie banner", "Banner lacks reject button")
	if err := store.CreateSolution(ctx, sol); err != nil {
		t.Fatalf("CreateSolution failed: %v", err)
	}

	got, err := store.UpdateSuccessRate(ctx, sol.Fingerprint, func(old float64) float64 { return old + 5 })
	if err != nil {
		t.Fatalf("UpdateSuccessRate failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Expected clamp to 1, got %v", got)
	}

	got, err = store.UpdateSuccessRate(ctx, sol.Fingerprint, func(float64) float64 { return -3 })
	if err != nil {
		t.Fatalf("UpdateSuccessRate failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Expected clamp to 0, got %v", got)
	}
}

func TestGetSolutions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	a := testSolution(t, "solution:legal", "Impressum missing", "No imprint page")
	b := testSolution(t, "solution:legal", "Cookie banner", "Banner lacks reject button")
	for _, sol := range []*model.CachedSolution{a, b} {
		if err := store.CreateSolution(ctx, sol); err != nil {
			t.Fatalf("CreateSolution failed: %v", err)
		}
	}

	got, err := store.GetSolutions(ctx, []string{a.Fingerprint, b.Fingerprint, "unknown"})
	if err != nil {
		t.Fatalf("GetSolutions failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 solutions, got %d", len(got))
	}

	all, err := store.ListSolutions(ctx)
	if err != nil {
		t.Fatalf("ListSolutions failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 listed solutions, got %d", len(all))
	}
}
