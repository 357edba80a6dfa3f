package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

const solutionColumns = `fingerprint, category, title, description, solution_text, model_version,
	search_tokens, usage_count, success_rate, created_at, last_used_at`

// GetSolution retrieves a cached solution by fingerprint.
func (s *SQLiteStorage) GetSolution(ctx context.Context, fingerprint string) (*model.CachedSolution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}
	return s.getSolution(ctx, s.db, fingerprint)
}

func (s *SQLiteStorage) getSolution(ctx context.Context, q queryable, fingerprint string) (*model.CachedSolution, error) {
	row := q.QueryRowContext(ctx, `SELECT `+solutionColumns+` FROM cached_solutions WHERE fingerprint = ?`, fingerprint)
	sol, err := scanSolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("solution %s: %w", fingerprint, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get solution: %w", err)
	}
	return sol, nil
}

// GetSolutions retrieves the cached solutions for the given fingerprints.
// Unknown fingerprints are absent from the returned map.
func (s *SQLiteStorage) GetSolutions(ctx context.Context, fingerprints []string) (map[string]*model.CachedSolution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	result := make(map[string]*model.CachedSolution, len(fingerprints))
	if len(fingerprints) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fingerprints)), ",")
	args := make([]any, len(fingerprints))
	for i, fp := range fingerprints {
		args[i] = fp
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+solutionColumns+` FROM cached_solutions WHERE fingerprint IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query solutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan solution: %w", err)
		}
		result[sol.Fingerprint] = sol
	}
	return result, rows.Err()
}

// ListSolutions returns every cached solution ordered by fingerprint.
func (s *SQLiteStorage) ListSolutions(ctx context.Context) ([]model.CachedSolution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+solutionColumns+` FROM cached_solutions ORDER BY fingerprint`)
	if err != nil {
		return nil, fmt.Errorf("failed to list solutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var solutions []model.CachedSolution
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan solution: %w", err)
		}
		solutions = append(solutions, *sol)
	}
	return solutions, rows.Err()
}

// CreateSolution inserts a new cached solution.
func (s *SQLiteStorage) CreateSolution(ctx context.Context, sol *model.CachedSolution) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSolution(sol); err != nil {
		return err
	}

	now := time.Now().UTC()
	if sol.CreatedAt.IsZero() {
		sol.CreatedAt = now
	}
	if sol.LastUsedAt.IsZero() {
		sol.LastUsedAt = sol.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cached_solutions (`+solutionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sol.Fingerprint,
		sol.Category,
		sol.Title,
		sol.Description,
		sol.SolutionText,
		sol.ModelVersion,
		strings.Join(sol.SearchTokens, " "),
		sol.UsageCount,
		sol.SuccessRate,
		utc(sol.CreatedAt),
		utc(sol.LastUsedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("solution %s: %w", sol.Fingerprint, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to create solution: %w", err)
	}
	return nil
}

// TouchSolution records a cache hit on the solution.
func (s *SQLiteStorage) TouchSolution(ctx context.Context, fingerprint string, usedAt time.Time) (*model.CachedSolution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return nil, err
	}

	var updated *model.CachedSolution
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE cached_solutions
			SET usage_count = usage_count + 1,
				last_used_at = MAX(last_used_at, ?)
			WHERE fingerprint = ?`, utc(usedAt), fingerprint)
		if err != nil {
			return fmt.Errorf("failed to touch solution: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("solution %s: %w", fingerprint, common.ErrNotFound)
		}
		updated, err = s.getSolution(ctx, tx, fingerprint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSuccessRate applies update to the stored success rate inside a
// transaction and returns the new value. Results are clamped to [0,1].
func (s *SQLiteStorage) UpdateSuccessRate(ctx context.Context, fingerprint string, update func(old float64) float64) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return 0, err
	}
	if update == nil {
		return 0, fmt.Errorf("%w: update", ErrNilParameter)
	}

	var next float64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var old float64
		err := tx.QueryRowContext(ctx,
			`SELECT success_rate FROM cached_solutions WHERE fingerprint = ?`, fingerprint).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("solution %s: %w", fingerprint, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read success rate: %w", err)
		}

		next = min(max(update(old), 0), 1)
		if _, err := tx.ExecContext(ctx,
			`UPDATE cached_solutions SET success_rate = ? WHERE fingerprint = ?`, next, fingerprint); err != nil {
			return fmt.Errorf("failed to update success rate: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSolution(row rowScanner) (*model.CachedSolution, error) {
	var (
		sol    model.CachedSolution
		tokens string
	)
	if err := row.Scan(
		&sol.Fingerprint,
		&sol.Category,
		&sol.Title,
		&sol.Description,
		&sol.SolutionText,
		&sol.ModelVersion,
		&tokens,
		&sol.UsageCount,
		&sol.SuccessRate,
		&sol.CreatedAt,
		&sol.LastUsedAt,
	); err != nil {
		return nil, err
	}
	sol.SearchTokens = strings.Fields(tokens)
	return &sol, nil
}
