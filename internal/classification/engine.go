// Package classification turns legal and compliance changes into actionable,
// personalized recommendations.
package classification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/reasoning"
	"github.com/Veraticus/compliance-intelligence/internal/service"
)

// CategoryPrefix namespaces classification payloads in the solution cache.
const CategoryPrefix = "classification:"

// LearningSource provides the most recent learning cycle result.
type LearningSource interface {
	Latest(ctx context.Context) (*model.LearningCycleResult, error)
}

// Options configures an Engine.
type Options struct {
	Logger   *slog.Logger
	Learning LearningSource
	Now      func() time.Time
}

// Engine classifies changes through the solution cache and persists the
// result per (subject, scope).
type Engine struct {
	store    service.ClassificationStore
	cache    *cache.SolutionCache
	client   reasoning.Client
	learning LearningSource
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a classification engine.
func NewEngine(store service.ClassificationStore, solutions *cache.SolutionCache, client reasoning.Client, opts Options) (*Engine, error) {
	if store == nil || solutions == nil || client == nil {
		return nil, fmt.Errorf("%w: store, cache and reasoning client are required", common.ErrInvalidInput)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    store,
		cache:    solutions,
		client:   client,
		learning: opts.Learning,
		logger:   common.LoggerOrDefault(opts.Logger),
		now:      now,
	}, nil
}

func validateChange(subjectID string, change model.Change) error {
	if strings.TrimSpace(subjectID) == "" {
		return fmt.Errorf("%w: subject_id is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(change.Type) == "" {
		return fmt.Errorf("%w: change type is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(change.Summary) == "" {
		return fmt.Errorf("%w: change summary is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(change.Description) == "" {
		return fmt.Errorf("%w: change description is required", common.ErrInvalidInput)
	}
	if change.SeverityHint != "" && !change.SeverityHint.Valid() {
		return fmt.Errorf("%w: severity hint %q", common.ErrInvalidInput, change.SeverityHint)
	}
	return nil
}

// Classify produces and stores the classification of change for subjectID
// in scope. An empty scope is the global classification.
func (e *Engine) Classify(ctx context.Context, subjectID, scope string, change model.Change) (*model.Classification, error) {
	if err := validateChange(subjectID, change); err != nil {
		return nil, err
	}

	suggestions := e.suggestions(ctx)
	projected := ThresholdsFor(suggestions, projectedActionType(change), projectedSeverity(change), "")

	input := reasoning.Input{
		Category:    CategoryPrefix + change.Type,
		Title:       change.Summary,
		Description: change.Description,
		Params:      changeParams(change, projected),
	}

	res, err := e.cache.GetOrGenerate(ctx, input.Category, input.Title, input.Description, e.generator(input))
	if err != nil {
		return nil, e.wrapFailure(subjectID, err)
	}

	p, err := decodePayload(res.Solution.SolutionText)
	if err != nil {
		e.logger.Error("cached classification payload is invalid",
			"fingerprint", res.Solution.Fingerprint,
			"error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrClassificationUnavailable, err)
	}

	c := p.classification()
	// Thresholds are enforced on every read so cached payloads follow new learning.
	ThresholdsFor(suggestions, c.PrimaryAction.Type, c.Severity, c.Confidence).Apply(&c)

	c.ID = uuid.NewString()
	c.SubjectID = subjectID
	c.Scope = scope
	c.ModelVersion = res.Solution.ModelVersion
	c.CacheFingerprint = res.Solution.Fingerprint
	c.ClassifiedAt = e.now().UTC()

	stored, err := e.store.UpsertClassification(ctx, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to store classification: %w", err)
	}

	e.logger.Info("classified change",
		"subject_id", subjectID,
		"scope", scope,
		"source", res.Source,
		"severity", stored.Severity,
		"action_required", stored.ActionRequired)
	return stored, nil
}

func changeParams(change model.Change, t Thresholds) map[string]string {
	params := map[string]string{}
	maps.Copy(params, t.Params())
	if change.Jurisdiction != "" {
		params["jurisdiction"] = change.Jurisdiction
	}
	if change.EffectiveDate != nil {
		params["effective_date"] = change.EffectiveDate.Format(time.DateOnly)
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// generator validates the payload before the cache can store it.
func (e *Engine) generator(input reasoning.Input) cache.Generator {
	return func(ctx context.Context) (cache.Generated, error) {
		res, err := e.client.Generate(ctx, reasoning.KindClassification, input)
		if err != nil {
			return cache.Generated{}, err
		}
		p, err := decodePayload(reasoning.CleanJSON(res.Payload))
		if err != nil {
			return cache.Generated{}, reasoning.Permanent(err)
		}
		text, err := p.encode()
		if err != nil {
			return cache.Generated{}, reasoning.Permanent(err)
		}
		return cache.Generated{Text: text, ModelVersion: res.ModelVersion}, nil
	}
}

func (e *Engine) wrapFailure(subjectID string, err error) error {
	var rerr *reasoning.Error
	switch {
	case errors.As(err, &rerr):
		e.logger.Warn("classification unavailable",
			"subject_id", subjectID,
			"transient", rerr.Transient,
			"error", err)
		return fmt.Errorf("%w: %w", common.ErrClassificationUnavailable, err)
	case errors.Is(err, common.ErrInvalidFingerprintInput):
		return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	default:
		return err
	}
}

func (e *Engine) suggestions(ctx context.Context) []model.Suggestion {
	if e.learning == nil {
		return nil
	}
	latest, err := e.learning.Latest(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			e.logger.Warn("failed to load learning result", "error", err)
		}
		return nil
	}
	if latest == nil {
		return nil
	}
	return latest.Suggestions
}

// Fallback returns the stored classification of subjectID in scope, or in
// the global scope when scope has none. Other tenants' rows are never
// returned. When there is none, cause is returned unchanged.
func (e *Engine) Fallback(ctx context.Context, subjectID, scope string, cause error) (*model.Classification, error) {
	scopes := []string{scope}
	if scope != "" {
		scopes = append(scopes, "")
	}

	for _, s := range scopes {
		c, err := e.store.GetClassification(ctx, subjectID, s)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, errors.Join(cause, err)
		}
	}
	return nil, cause
}

// Get returns the stored classification of subjectID in scope.
func (e *Engine) Get(ctx context.Context, subjectID, scope string) (*model.Classification, error) {
	return e.store.GetClassification(ctx, subjectID, scope)
}

// List returns every classification in scope ordered for display.
func (e *Engine) List(ctx context.Context, scope string) ([]model.Classification, error) {
	classifications, err := e.store.ListClassifications(ctx, scope)
	if err != nil {
		return nil, err
	}
	model.SortForDisplay(classifications)
	return classifications, nil
}
