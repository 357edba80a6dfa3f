package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Solution cache and classifications",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS cached_solutions (
					fingerprint TEXT PRIMARY KEY,
					category TEXT NOT NULL,
					title TEXT NOT NULL,
					description TEXT NOT NULL,
					solution_text TEXT NOT NULL,
					model_version TEXT NOT NULL DEFAULT '',
					search_tokens TEXT NOT NULL DEFAULT '',
					usage_count INTEGER NOT NULL DEFAULT 0,
					success_rate REAL NOT NULL DEFAULT 0.8 CHECK (success_rate >= 0 AND success_rate <= 1),
					created_at DATETIME NOT NULL,
					last_used_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_cached_solutions_category ON cached_solutions(category)`,

				// Global scope is stored as '' so the unique constraint holds for it.
				`CREATE TABLE IF NOT EXISTS classifications (
					id TEXT PRIMARY KEY,
					subject_id TEXT NOT NULL,
					scope TEXT NOT NULL DEFAULT '',
					action_required BOOLEAN NOT NULL,
					confidence TEXT NOT NULL,
					severity TEXT NOT NULL,
					impact_score REAL NOT NULL,
					primary_action TEXT NOT NULL,
					primary_action_type TEXT NOT NULL,
					secondary_actions TEXT NOT NULL DEFAULT '[]',
					reasoning TEXT NOT NULL DEFAULT '',
					user_impact_text TEXT NOT NULL DEFAULT '',
					model_version TEXT NOT NULL DEFAULT '',
					cache_fingerprint TEXT NOT NULL DEFAULT '',
					classified_at DATETIME NOT NULL,
					UNIQUE(subject_id, scope)
				)`,
				`CREATE INDEX idx_classifications_scope ON classifications(scope)`,

				`CREATE TABLE IF NOT EXISTS classification_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					classification_id TEXT NOT NULL,
					subject_id TEXT NOT NULL,
					scope TEXT NOT NULL DEFAULT '',
					action_required BOOLEAN NOT NULL,
					confidence TEXT NOT NULL,
					severity TEXT NOT NULL,
					impact_score REAL NOT NULL,
					model_version TEXT NOT NULL DEFAULT '',
					classified_at DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_classification_history_subject ON classification_history(subject_id, scope)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Feedback events",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS feedback_events (
					id TEXT PRIMARY KEY,
					classification_id TEXT NOT NULL,
					scope TEXT NOT NULL DEFAULT '',
					kind TEXT NOT NULL,
					time_to_action_ms INTEGER,
					context TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME NOT NULL,
					FOREIGN KEY (classification_id) REFERENCES classifications(id)
				)`,
				`CREATE INDEX idx_feedback_events_created_at ON feedback_events(created_at)`,
				`CREATE INDEX idx_feedback_events_classification ON feedback_events(classification_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Learning cycle results",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS learning_cycle_results (
					id TEXT PRIMARY KEY,
					considered_feedback_count INTEGER NOT NULL,
					suggestions TEXT NOT NULL,
					window_start DATETIME NOT NULL,
					computed_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_learning_cycle_results_computed_at ON learning_cycle_results(computed_at)`,
			)
		},
	},
	{
		Version:     4,
		Description: "Feedback archive",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS feedback_archive (
					id TEXT PRIMARY KEY,
					classification_id TEXT NOT NULL,
					scope TEXT NOT NULL DEFAULT '',
					kind TEXT NOT NULL,
					time_to_action_ms INTEGER,
					context TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME NOT NULL,
					archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies any pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion > ExpectedSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, ExpectedSchemaVersion)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the database's current user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
