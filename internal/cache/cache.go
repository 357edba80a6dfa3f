// Package cache implements the fingerprinted solution cache that sits in
// front of the reasoning service.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/fingerprint"
	"github.com/Veraticus/compliance-intelligence/internal/fuzzy"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/service"
)

// Source tells how a request was served.
type Source string

// Sources.
const (
	SourceExact     Source = "exact"
	SourceFuzzy     Source = "fuzzy"
	SourceGenerated Source = "generated"
)

// Generated is the output of a Generator.
type Generated struct {
	Text         string
	ModelVersion string
}

// Generator produces a solution on a full cache miss. The context it
// receives is not canceled when an individual caller gives up.
type Generator func(ctx context.Context) (Generated, error)

// Result is the outcome of GetOrGenerate.
type Result struct {
	Solution *model.CachedSolution
	Source   Source
	Score    float64
	// Shared is true when the generation was shared with other callers.
	Shared bool
}

// Match is a fuzzy candidate with its stored solution.
type Match struct {
	Solution     *model.CachedSolution
	Score        float64
	SharedTokens int
}

// SolutionCache serves solutions by exact fingerprint, then by fuzzy match,
// and generates them at most once per fingerprint at a time.
type SolutionCache struct {
	store  service.SolutionStore
	index  *fuzzy.Index
	logger *slog.Logger
	group  singleflight.Group
	stats  counters
	opts   Options
}

type flightResult struct {
	solution *model.CachedSolution
	source   Source
}

// New creates a cache over store. Call Rebuild to load existing solutions
// into the fuzzy index.
func New(store service.SolutionStore, opts Options) (*SolutionCache, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: solution store is required", common.ErrInvalidInput)
	}
	opts = opts.withDefaults()

	index, err := fuzzy.NewIndex(opts.MaxCandidates)
	if err != nil {
		return nil, err
	}

	return &SolutionCache{
		store:  store,
		index:  index,
		logger: opts.Logger,
		opts:   opts,
	}, nil
}

// Close releases the fuzzy index.
func (c *SolutionCache) Close() error {
	return c.index.Close()
}

// Lookup returns the solution stored under fp or common.ErrNotFound.
func (c *SolutionCache) Lookup(ctx context.Context, fp string) (*model.CachedSolution, error) {
	return c.store.GetSolution(ctx, fp)
}

// LookupFuzzy returns up to topK solutions in category ranked by token
// overlap with query. topK <= 0 returns every candidate.
func (c *SolutionCache) LookupFuzzy(ctx context.Context, category, query string, topK int) ([]Match, error) {
	category = fingerprint.Normalize(category)
	tokens := fuzzy.Tokenize(query)
	if category == "" || len(tokens) == 0 {
		return nil, nil
	}

	hits, err := c.index.Search(category, tokens)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	fps := make([]string, len(hits))
	for i, h := range hits {
		fps[i] = h.Fingerprint
	}
	solutions, err := c.store.GetSolutions(ctx, fps)
	if err != nil {
		return nil, fmt.Errorf("failed to load fuzzy candidates: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		sol, ok := solutions[h.Fingerprint]
		if !ok {
			// Indexed but no longer stored.
			if err := c.index.Remove(h.Fingerprint); err != nil {
				c.logger.Warn("failed to prune fuzzy index", "fingerprint", h.Fingerprint, "error", err)
			}
			continue
		}
		matches = append(matches, Match{Solution: sol, Score: h.Score, SharedTokens: h.SharedTokens})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Solution.SuccessRate != b.Solution.SuccessRate {
			return a.Solution.SuccessRate > b.Solution.SuccessRate
		}
		if !a.Solution.LastUsedAt.Equal(b.Solution.LastUsedAt) {
			return a.Solution.LastUsedAt.After(b.Solution.LastUsedAt)
		}
		return a.Solution.Fingerprint < b.Solution.Fingerprint
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (c *SolutionCache) accept(m Match, category string) bool {
	return m.SharedTokens >= c.opts.MinSharedTokens &&
		m.Score >= c.opts.MinScore &&
		m.Solution.Category == category
}

// GetOrGenerate returns the cached solution for the issue, a near-duplicate
// accepted by the fuzzy matcher, or a newly generated one.
func (c *SolutionCache) GetOrGenerate(ctx context.Context, category, title, description string, gen Generator) (*Result, error) {
	fp, err := fingerprint.Compute(category, title, description)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("%w: generator is required", common.ErrInvalidInput)
	}
	category = fingerprint.Normalize(category)

	sol, err := c.store.GetSolution(ctx, fp)
	switch {
	case err == nil:
		touched, err := c.touch(ctx, sol.Fingerprint)
		if err != nil {
			return nil, err
		}
		c.stats.exact.Add(1)
		return &Result{Solution: touched, Source: SourceExact, Score: 1}, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("exact lookup failed: %w", err)
	}

	matches, err := c.LookupFuzzy(ctx, category, title+" "+description, 1)
	if err != nil {
		// The exact path already missed; a broken index only costs a generation.
		c.logger.Warn("fuzzy lookup failed", "fingerprint", fp, "error", err)
	}
	if len(matches) > 0 && c.accept(matches[0], category) {
		touched, err := c.touch(ctx, matches[0].Solution.Fingerprint)
		if err != nil {
			return nil, err
		}
		c.stats.fuzzy.Add(1)
		c.logger.Debug("fuzzy cache hit",
			"fingerprint", fp,
			"matched", touched.Fingerprint,
			"score", matches[0].Score,
			"shared_tokens", matches[0].SharedTokens)
		return &Result{Solution: touched, Source: SourceFuzzy, Score: matches[0].Score}, nil
	}

	return c.generate(ctx, fp, category, title, description, gen)
}

func (c *SolutionCache) generate(ctx context.Context, fp, category, title, description string, gen Generator) (*Result, error) {
	flightCtx := context.WithoutCancel(ctx)
	var leader atomic.Bool
	ch := c.group.DoChan(fp, func() (any, error) {
		leader.Store(true)
		return c.runFlight(flightCtx, fp, category, title, description, gen)
	})

	wait := ctx
	if c.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, c.opts.WaitTimeout)
		defer cancel()
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			c.stats.failures.Add(1)
			return nil, res.Err
		}
		fr, ok := res.Val.(flightResult)
		if !ok {
			return nil, fmt.Errorf("unexpected flight result %T", res.Val)
		}
		if fr.source == SourceGenerated {
			c.stats.served.Add(1)
		} else {
			c.stats.exact.Add(1)
		}
		if !leader.Load() {
			// The flight counted one serve; every other waiter records its own.
			touched, err := c.touch(flightCtx, fp)
			if err != nil {
				return nil, err
			}
			return &Result{Solution: touched, Source: fr.source, Score: 1, Shared: res.Shared}, nil
		}
		sol := *fr.solution
		return &Result{Solution: &sol, Source: fr.source, Score: 1, Shared: res.Shared}, nil
	case <-wait.Done():
		c.stats.timeouts.Add(1)
		c.logger.Warn("gave up waiting for generation", "fingerprint", fp, "error", wait.Err())
		return nil, fmt.Errorf("%w: %s: %w", common.ErrGenerationTimeout, fp, wait.Err())
	}
}

// runFlight executes once per fingerprint across concurrent callers.
func (c *SolutionCache) runFlight(ctx context.Context, fp, category, title, description string, gen Generator) (flightResult, error) {
	// A previous flight may have stored the row after this caller's lookup.
	if existing, err := c.store.GetSolution(ctx, fp); err == nil {
		touched, err := c.touch(ctx, existing.Fingerprint)
		if err != nil {
			return flightResult{}, err
		}
		return flightResult{solution: touched, source: SourceExact}, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return flightResult{}, fmt.Errorf("exact lookup failed: %w", err)
	}

	started := time.Now()
	out, err := gen(ctx)
	if err != nil {
		c.logger.Warn("solution generation failed", "fingerprint", fp, "error", err)
		return flightResult{}, err
	}
	c.stats.generated.Add(1)
	if strings.TrimSpace(out.Text) == "" {
		return flightResult{}, fmt.Errorf("generator returned an empty solution for %s", fp)
	}

	now := time.Now().UTC()
	sol := &model.CachedSolution{
		Fingerprint:  fp,
		Category:     category,
		Title:        fingerprint.Normalize(title),
		Description:  fingerprint.Normalize(description),
		SolutionText: out.Text,
		ModelVersion: out.ModelVersion,
		SearchTokens: fuzzy.Tokenize(title + " " + description),
		UsageCount:   1,
		SuccessRate:  c.opts.SuccessPrior,
		CreatedAt:    now,
		LastUsedAt:   now,
	}

	if err := c.store.CreateSolution(ctx, sol); err != nil {
		if !errors.Is(err, common.ErrDuplicateEntry) {
			return flightResult{}, fmt.Errorf("failed to store solution: %w", err)
		}
		// Another process stored it first; serve theirs.
		touched, err := c.touch(ctx, fp)
		if err != nil {
			return flightResult{}, err
		}
		return flightResult{solution: touched, source: SourceExact}, nil
	}

	if err := c.index.Put(fuzzy.Document{Fingerprint: fp, Category: category, Tokens: sol.SearchTokens}); err != nil {
		c.logger.Warn("failed to index solution", "fingerprint", fp, "error", err)
	}

	c.logger.Info("generated solution",
		"fingerprint", fp,
		"category", category,
		"model_version", sol.ModelVersion,
		"duration", time.Since(started))
	return flightResult{solution: sol, source: SourceGenerated}, nil
}

func (c *SolutionCache) touch(ctx context.Context, fp string) (*model.CachedSolution, error) {
	sol, err := c.store.TouchSolution(ctx, fp, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to record cache hit: %w", err)
	}
	return sol, nil
}

// RecordOutcome folds one success or failure into the solution's success rate.
func (c *SolutionCache) RecordOutcome(ctx context.Context, fp string, success bool) (float64, error) {
	rate, err := c.store.UpdateSuccessRate(ctx, fp, func(old float64) float64 {
		return UpdateSuccessRate(old, success, c.opts.Alpha)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record outcome for %s: %w", fp, err)
	}
	return rate, nil
}

// Rebuild reloads the fuzzy index from the store and returns the number of
// indexed solutions. onProgress, if set, is called after every batch.
func (c *SolutionCache) Rebuild(ctx context.Context, onProgress func(done, total int)) (int, error) {
	solutions, err := c.store.ListSolutions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list solutions: %w", err)
	}
	if err := c.index.Reset(); err != nil {
		return 0, err
	}

	const batchSize = 100
	for start := 0; start < len(solutions); start += batchSize {
		if err := ctx.Err(); err != nil {
			return start, err
		}
		end := min(start+batchSize, len(solutions))
		docs := make([]fuzzy.Document, 0, end-start)
		for _, sol := range solutions[start:end] {
			tokens := sol.SearchTokens
			if len(tokens) == 0 {
				tokens = fuzzy.Tokenize(sol.Title + " " + sol.Description)
			}
			docs = append(docs, fuzzy.Document{Fingerprint: sol.Fingerprint, Category: sol.Category, Tokens: tokens})
		}
		if err := c.index.Put(docs...); err != nil {
			return start, err
		}
		if onProgress != nil {
			onProgress(end, len(solutions))
		}
	}

	c.logger.Info("rebuilt fuzzy index", "solutions", len(solutions))
	return len(solutions), nil
}

// Stats returns a snapshot of the cache counters.
func (c *SolutionCache) Stats() Stats {
	return c.stats.snapshot()
}
