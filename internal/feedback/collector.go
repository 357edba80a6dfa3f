// Package feedback records user reactions to classifications and feeds
// their outcomes back into the solution cache.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/model"
	"github.com/Veraticus/compliance-intelligence/internal/service"
)

// Defaults for Options.
const (
	DefaultQueueSize      = 256
	DefaultRetention      = 90 * 24 * time.Hour
	defaultOutcomeTimeout = 5 * time.Second
)

// Store is the persistence the collector needs.
type Store interface {
	service.FeedbackStore
	GetClassificationByID(ctx context.Context, id string) (*model.Classification, error)
}

// OutcomeRecorder receives success signals for cached solutions.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, fingerprint string, success bool) (float64, error)
}

// Input is a feedback submission.
type Input struct {
	TimeToAction     *time.Duration
	Context          map[string]string
	ClassificationID string
	Scope            string
	Kind             model.FeedbackKind
}

// Options configures a Collector.
type Options struct {
	Logger    *slog.Logger
	Now       func() time.Time
	QueueSize int
	Retention time.Duration
}

type outcome struct {
	fingerprint string
	success     bool
}

// Collector appends feedback events and applies their outcomes
// asynchronously on a single background worker.
type Collector struct {
	store     Store
	outcomes  OutcomeRecorder
	logger    *slog.Logger
	now       func() time.Time
	queue     chan outcome
	wg        sync.WaitGroup
	dropped   atomic.Int64
	retention time.Duration
	mu        sync.RWMutex
	closed    bool
}

// NewCollector creates a collector and starts its worker. Call Close to
// drain pending outcomes.
func NewCollector(store Store, outcomes OutcomeRecorder, opts Options) (*Collector, error) {
	if store == nil || outcomes == nil {
		return nil, fmt.Errorf("%w: store and outcome recorder are required", common.ErrInvalidInput)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Collector{
		store:     store,
		outcomes:  outcomes,
		logger:    common.LoggerOrDefault(opts.Logger),
		now:       opts.Now,
		queue:     make(chan outcome, opts.QueueSize),
		retention: opts.Retention,
	}
	c.wg.Add(1)
	go c.work()
	return c, nil
}

// Record validates and appends a feedback event. Feedback for an unknown
// classification is logged and rejected with common.ErrFeedbackOrphaned.
func (c *Collector) Record(ctx context.Context, in Input) (*model.FeedbackEvent, error) {
	if strings.TrimSpace(in.ClassificationID) == "" {
		return nil, fmt.Errorf("%w: classification_id is required", common.ErrInvalidInput)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown feedback kind %q", common.ErrInvalidInput, in.Kind)
	}
	if in.TimeToAction != nil && *in.TimeToAction < 0 {
		return nil, fmt.Errorf("%w: negative time_to_action", common.ErrInvalidInput)
	}

	classification, err := c.store.GetClassificationByID(ctx, in.ClassificationID)
	if errors.Is(err, common.ErrNotFound) {
		c.logger.Warn("dropping orphaned feedback",
			"classification_id", in.ClassificationID,
			"kind", in.Kind)
		return nil, fmt.Errorf("%w: %s", common.ErrFeedbackOrphaned, in.ClassificationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up classification: %w", err)
	}

	scope := in.Scope
	if scope == "" {
		scope = classification.Scope
	}
	ev := &model.FeedbackEvent{
		ID:               uuid.NewString(),
		ClassificationID: classification.ID,
		Scope:            scope,
		Kind:             in.Kind,
		TimeToAction:     in.TimeToAction,
		Context:          in.Context,
		CreatedAt:        c.now().UTC(),
	}
	if err := c.store.SaveFeedback(ctx, ev); err != nil {
		if errors.Is(err, common.ErrFeedbackOrphaned) {
			c.logger.Warn("dropping orphaned feedback", "classification_id", in.ClassificationID)
		}
		return nil, err
	}

	if success, ok := in.Kind.Outcome(); ok && classification.CacheFingerprint != "" {
		c.enqueue(outcome{fingerprint: classification.CacheFingerprint, success: success})
	}
	return ev, nil
}

func (c *Collector) enqueue(o outcome) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		c.logger.Warn("collector closed, dropping outcome", "fingerprint", o.fingerprint)
		return
	}
	select {
	case c.queue <- o:
	default:
		c.dropped.Add(1)
		c.logger.Warn("outcome queue full, dropping outcome", "fingerprint", o.fingerprint)
	}
}

func (c *Collector) work() {
	defer c.wg.Done()
	for o := range c.queue {
		ctx, cancel := context.WithTimeout(context.Background(), defaultOutcomeTimeout)
		rate, err := c.outcomes.RecordOutcome(ctx, o.fingerprint, o.success)
		cancel()
		if err != nil {
			c.logger.Error("failed to record outcome",
				"fingerprint", o.fingerprint,
				"success", o.success,
				"error", err)
			continue
		}
		c.logger.Debug("recorded outcome",
			"fingerprint", o.fingerprint,
			"success", o.success,
			"success_rate", rate)
	}
}

// Dropped returns how many outcomes were discarded because the queue was
// full or the collector was closed.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting outcomes and waits for queued ones to be applied.
func (c *Collector) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// Archive moves feedback older than the retention window into the archive.
func (c *Collector) Archive(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)
	moved, err := c.store.ArchiveFeedbackBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive feedback: %w", err)
	}
	if moved > 0 {
		c.logger.Info("archived feedback", "events", moved, "cutoff", cutoff)
	}
	return moved, nil
}
