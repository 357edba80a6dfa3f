package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// SaveFeedback appends a feedback event. Events referring to an unknown
// classification are rejected with common.ErrFeedbackOrphaned.
func (s *SQLiteStorage) SaveFeedback(ctx context.Context, ev *model.FeedbackEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFeedback(ev); err != nil {
		return err
	}

	contextJSON := []byte("{}")
	if len(ev.Context) > 0 {
		var err error
		if contextJSON, err = json.Marshal(ev.Context); err != nil {
			return fmt.Errorf("failed to marshal feedback context: %w", err)
		}
	}

	var timeToAction sql.NullInt64
	if ev.TimeToAction != nil {
		timeToAction = sql.NullInt64{Int64: ev.TimeToAction.Milliseconds(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_events (id, classification_id, scope, kind, time_to_action_ms, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.ClassificationID,
		ev.Scope,
		string(ev.Kind),
		timeToAction,
		string(contextJSON),
		utc(ev.CreatedAt),
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("classification %s: %w", ev.ClassificationID, common.ErrFeedbackOrphaned)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("feedback %s: %w", ev.ID, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// GetFeedbackSamples returns feedback created at or after since, joined with
// the bucket fields of the classification each event refers to.
func (s *SQLiteStorage) GetFeedbackSamples(ctx context.Context, since time.Time) ([]model.FeedbackSample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.created_at, c.primary_action_type, c.severity, c.confidence, f.kind
		FROM feedback_events f
		JOIN classifications c ON c.id = f.classification_id
		WHERE f.created_at >= ?
		ORDER BY f.created_at, f.id`, utc(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []model.FeedbackSample
	for rows.Next() {
		var (
			sample               model.FeedbackSample
			severity, confidence string
			kind                 string
		)
		if err := rows.Scan(&sample.CreatedAt, &sample.ActionType, &severity, &confidence, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan feedback sample: %w", err)
		}
		sample.Severity = model.Severity(severity)
		sample.Confidence = model.Confidence(confidence)
		sample.Kind = model.FeedbackKind(kind)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// ArchiveFeedbackBefore moves feedback older than cutoff into feedback_archive
// and returns how many events were moved.
func (s *SQLiteStorage) ArchiveFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var moved int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO feedback_archive (id, classification_id, scope, kind, time_to_action_ms, context, created_at)
			SELECT id, classification_id, scope, kind, time_to_action_ms, context, created_at
			FROM feedback_events WHERE created_at < ?`, utc(cutoff))
		if err != nil {
			return fmt.Errorf("failed to copy feedback to archive: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM feedback_events WHERE created_at < ?`, utc(cutoff))
		if err != nil {
			return fmt.Errorf("failed to delete archived feedback: %w", err)
		}
		moved, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// CountFeedback returns the number of live feedback events.
func (s *SQLiteStorage) CountFeedback(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
