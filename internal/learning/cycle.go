// Package learning periodically turns feedback into threshold adjustment
// suggestions for the classification engine.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/service"
)

// Defaults for Options.
const (
	DefaultLookback      = 30 * 24 * time.Hour
	DefaultMinSampleSize = 5
)

// State of a Cycle.
type State int32

// States.
const (
	StateIdle State = iota
	StateAggregating
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAggregating:
		return "aggregating"
	case StatePublishing:
		return "publishing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Store is the persistence a Cycle needs.
type Store interface {
	service.LearningStore
	GetFeedbackSamples(ctx context.Context, since time.Time) ([]model.FeedbackSample, error)
}

// Options configures a Cycle.
type Options struct {
	Logger        *slog.Logger
	Now           func() time.Time
	Lookback      time.Duration
	MinSampleSize int
	BaselinePrior float64
	// Incremental starts the window at the previous cycle when that is later.
	Incremental bool
}

// Cycle computes and publishes learning results, one run at a time.
type Cycle struct {
	store  Store
	logger *slog.Logger
	latest atomic.Pointer[model.LearningCycleResult]
	opts   Options
	state  atomic.Int32
}

// NewCycle creates an idle learning cycle.
func NewCycle(store Store, opts Options) (*Cycle, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: learning store is required", common.ErrInvalidInput)
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.MinSampleSize <= 0 {
		opts.MinSampleSize = DefaultMinSampleSize
	}
	if opts.BaselinePrior <= 0 || opts.BaselinePrior > 1 {
		opts.BaselinePrior = model.DefaultSuccessPrior
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cycle{
		store:  store,
		logger: common.LoggerOrDefault(opts.Logger),
		opts:   opts,
	}, nil
}

// State returns the current state.
func (c *Cycle) State() State {
	return State(c.state.Load())
}

// Run aggregates feedback in the window and publishes a new result.
// A run that overlaps another returns common.ErrLearningCycleBusy.
func (c *Cycle) Run(ctx context.Context) (*model.LearningCycleResult, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateAggregating)) {
		return nil, common.ErrLearningCycleBusy
	}
	defer c.state.Store(int32(StateIdle))

	started := time.Now()
	if _, err := c.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load previous learning result: %w", err)
	}
	previous := c.latest.Load()

	now := c.opts.Now().UTC()
	windowStart := now.Add(-c.opts.Lookback)
	var baseline []model.Suggestion
	if previous != nil {
		baseline = previous.Suggestions
		if c.opts.Incremental && previous.ComputedAt.After(windowStart) {
			windowStart = previous.ComputedAt
		}
	}

	samples, err := c.store.GetFeedbackSamples(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	suggestions, considered := Aggregate(samples, baseline, c.opts.MinSampleSize, c.opts.BaselinePrior)

	c.state.Store(int32(StatePublishing))
	result := &model.LearningCycleResult{
		ID:                      uuid.NewString(),
		WindowStart:             windowStart,
		ComputedAt:              now,
		Suggestions:             suggestions,
		ConsideredFeedbackCount: considered,
	}
	if err := c.store.SaveLearningResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to publish learning result: %w", err)
	}
	c.latest.Store(result)

	c.logger.Info("learning cycle completed",
		"id", result.ID,
		"window_start", windowStart,
		"considered", considered,
		"suggestions", len(suggestions),
		"duration", time.Since(started))
	return result, nil
}

// Latest returns the most recently published result, loading it from the
// store on first use. It returns common.ErrNotFound before the first cycle.
func (c *Cycle) Latest(ctx context.Context) (*model.LearningCycleResult, error) {
	if r := c.latest.Load(); r != nil {
		return r, nil
	}
	r, err := c.store.GetLatestLearningResult(ctx)
	if err != nil {
		return nil, err
	}
	// A concurrent Run may have published a newer result meanwhile.
	if c.latest.CompareAndSwap(nil, r) {
		return r, nil
	}
	return c.latest.Load(), nil
}

// Refresh adopts the store's latest result when it is newer than the one in
// memory, such as a result published by another process. It reports whether
// the in-memory result changed.
func (c *Cycle) Refresh(ctx context.Context) (bool, error) {
	r, err := c.store.GetLatestLearningResult(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for {
		cur := c.latest.Load()
		if cur != nil && (cur.ID == r.ID || !r.ComputedAt.After(cur.ComputedAt)) {
			return false, nil
		}
		if c.latest.CompareAndSwap(cur, r) {
			c.logger.Info("adopted learning result", "id", r.ID, "computed_at", r.ComputedAt)
			return true, nil
		}
	}
}
