package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

const classificationColumns = `id, subject_id, scope, action_required, confidence, severity, impact_score,
	primary_action, secondary_actions, reasoning, user_impact_text, model_version, cache_fingerprint, classified_at`

// UpsertClassification stores the classification for its (subject, scope)
// pair. An existing row keeps its ID and has every other field replaced.
// Each write also appends an entry to classification_history.
func (s *SQLiteStorage) UpsertClassification(ctx context.Context, c *model.Classification) (*model.Classification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateClassification(c); err != nil {
		return nil, err
	}

	primary, err := json.Marshal(c.PrimaryAction)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal primary action: %w", err)
	}
	secondary := c.SecondaryActions
	if secondary == nil {
		secondary = []model.Action{}
	}
	secondaryJSON, err := json.Marshal(secondary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secondary actions: %w", err)
	}

	var stored *model.Classification
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO classifications (
				id, subject_id, scope, action_required, confidence, severity, impact_score,
				primary_action, primary_action_type, secondary_actions, reasoning,
				user_impact_text, model_version, cache_fingerprint, classified_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(subject_id, scope) DO UPDATE SET
				action_required = excluded.action_required,
				confidence = excluded.confidence,
				severity = excluded.severity,
				impact_score = excluded.impact_score,
				primary_action = excluded.primary_action,
				primary_action_type = excluded.primary_action_type,
				secondary_actions = excluded.secondary_actions,
				reasoning = excluded.reasoning,
				user_impact_text = excluded.user_impact_text,
				model_version = excluded.model_version,
				cache_fingerprint = excluded.cache_fingerprint,
				classified_at = excluded.classified_at`,
			c.ID,
			c.SubjectID,
			c.Scope,
			c.ActionRequired,
			string(c.Confidence),
			string(c.Severity),
			c.ImpactScore,
			string(primary),
			c.PrimaryAction.Type,
			string(secondaryJSON),
			c.Reasoning,
			c.UserImpactText,
			c.ModelVersion,
			c.CacheFingerprint,
			utc(c.ClassifiedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert classification: %w", err)
		}

		stored, err = s.getClassification(ctx, tx, `subject_id = ? AND scope = ?`, c.SubjectID, c.Scope)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO classification_history (
				classification_id, subject_id, scope, action_required, confidence,
				severity, impact_score, model_version, classified_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.ID,
			stored.SubjectID,
			stored.Scope,
			stored.ActionRequired,
			string(stored.Confidence),
			string(stored.Severity),
			stored.ImpactScore,
			stored.ModelVersion,
			utc(stored.ClassifiedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to record classification history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetClassification retrieves the classification for a subject in a scope.
// An empty scope selects the global classification.
func (s *SQLiteStorage) GetClassification(ctx context.Context, subjectID, scope string) (*model.Classification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(subjectID, "subjectID"); err != nil {
		return nil, err
	}
	return s.getClassification(ctx, s.db, `subject_id = ? AND scope = ?`, subjectID, scope)
}

// GetClassificationByID retrieves a classification by its identifier.
func (s *SQLiteStorage) GetClassificationByID(ctx context.Context, id string) (*model.Classification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getClassification(ctx, s.db, `id = ?`, id)
}

// ListClassifications returns every classification in a scope.
func (s *SQLiteStorage) ListClassifications(ctx context.Context, scope string) ([]model.Classification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+classificationColumns+` FROM classifications WHERE scope = ? ORDER BY classified_at DESC, id`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var classifications []model.Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		classifications = append(classifications, *c)
	}
	return classifications, rows.Err()
}

// CountClassificationHistory returns how many times a (subject, scope)
// classification has been written.
func (s *SQLiteStorage) CountClassificationHistory(ctx context.Context, subjectID, scope string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM classification_history WHERE subject_id = ? AND scope = ?`,
		subjectID, scope).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count classification history: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) getClassification(ctx context.Context, q queryable, where string, args ...any) (*model.Classification, error) {
	row := q.QueryRowContext(ctx, `SELECT `+classificationColumns+` FROM classifications WHERE `+where, args...)
	c, err := scanClassification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("classification: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return c, nil
}

func scanClassification(row rowScanner) (*model.Classification, error) {
	var (
		c                  model.Classification
		confidence         string
		severity           string
		primary, secondary string
	)
	if err := row.Scan(
		&c.ID,
		&c.SubjectID,
		&c.Scope,
		&c.ActionRequired,
		&confidence,
		&severity,
		&c.ImpactScore,
		&primary,
		&secondary,
		&c.Reasoning,
		&c.UserImpactText,
		&c.ModelVersion,
		&c.CacheFingerprint,
		&c.ClassifiedAt,
	); err != nil {
		return nil, err
	}
	c.Confidence = model.Confidence(confidence)
	c.Severity = model.Severity(severity)

	if err := json.Unmarshal([]byte(primary), &c.PrimaryAction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal primary action: %w", err)
	}
	if err := json.Unmarshal([]byte(secondary), &c.SecondaryActions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secondary actions: %w", err)
	}
	return &c, nil
}
