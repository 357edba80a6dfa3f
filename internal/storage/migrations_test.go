package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrate_FreshDatabase(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", ExpectedSchemaVersion, version)
	}

	for _, table := range []string{
		"cached_solutions",
		"classifications",
		"classification_history",
		"feedback_events",
		"feedback_archive",
		"learning_cycle_results",
	} {
		var name string
		err := store.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idempotent.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store, err := NewSQLiteStorage(dbPath)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			t.Fatalf("Migrate %d failed: %v", i, err)
		}
		store.Close()
	}
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	if _, err := store.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("Failed to bump user_version: %v", err)
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Error("Expected error migrating a newer schema")
	}
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("Migration at index %d has version %d", i, m.Version)
		}
	}
	if migrations[len(migrations)-1].Version != ExpectedSchemaVersion {
		t.Errorf("Last migration version %d != ExpectedSchemaVersion %d",
			migrations[len(migrations)-1].Version, ExpectedSchemaVersion)
	}
}
