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

// SaveLearningResult persists a learning cycle result in one statement.
func (s *SQLiteStorage) SaveLearningResult(ctx context.Context, result *model.LearningCycleResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLearningResult(result); err != nil {
		return err
	}

	suggestions := result.Suggestions
	if suggestions == nil {
		suggestions = []model.Suggestion{}
	}
	payload, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO learning_cycle_results (id, considered_feedback_count, suggestions, window_start, computed_at)
			VALUES (?, ?, ?, ?, ?)`,
			result.ID,
			result.ConsideredFeedbackCount,
			string(payload),
			utc(result.WindowStart),
			utc(result.ComputedAt),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("learning result %s: %w", result.ID, common.ErrDuplicateEntry)
		}
		if err != nil {
			return fmt.Errorf("failed to save learning result: %w", err)
		}
		return nil
	})
}

// GetLatestLearningResult returns the most recently computed result.
func (s *SQLiteStorage) GetLatestLearningResult(ctx context.Context) (*model.LearningCycleResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		result  model.LearningCycleResult
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, considered_feedback_count, suggestions, window_start, computed_at
		FROM learning_cycle_results
		ORDER BY computed_at DESC, rowid DESC
		LIMIT 1`).Scan(
		&result.ID,
		&result.ConsideredFeedbackCount,
		&payload,
		&result.WindowStart,
		&result.ComputedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("learning result: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest learning result: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &result.Suggestions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suggestions: %w", err)
	}
	return &result, nil
}
