package learning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/common"
)

// Scheduler defaults.
const (
	// DefaultInterval is how often the scheduler runs a cycle.
	DefaultInterval = 24 * time.Hour
	// DefaultRefreshInterval is how often results published elsewhere are picked up.
	DefaultRefreshInterval = time.Minute
)

// Archiver moves expired feedback out of the live table.
type Archiver interface {
	Archive(ctx context.Context) (int64, error)
}

// Scheduler runs the learning cycle and feedback archival on a ticker, and
// picks up results other processes publish in between.
type Scheduler struct {
	cycle    *Cycle
	archiver Archiver
	logger   *slog.Logger
	interval time.Duration
	refresh  time.Duration
}

// NewScheduler creates a scheduler. archiver may be nil.
func NewScheduler(cycle *Cycle, archiver Archiver, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		cycle:    cycle,
		archiver: archiver,
		logger:   common.LoggerOrDefault(logger),
		interval: interval,
		refresh:  min(DefaultRefreshInterval, interval),
	}
}

// Run blocks until ctx is done, running one tick per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	refresh := time.NewTicker(s.refresh)
	defer refresh.Stop()

	s.logger.Info("learning scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("learning scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		case <-refresh.C:
			if _, err := s.cycle.Refresh(ctx); err != nil {
				s.logger.Warn("failed to refresh learning result", "error", err)
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.archiver != nil {
		if _, err := s.archiver.Archive(ctx); err != nil {
			s.logger.Error("feedback archival failed", "error", err)
		}
	}

	_, err := s.cycle.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrLearningCycleBusy):
		s.logger.Debug("learning cycle already running, skipping tick")
	default:
		// Retried on the next tick.
		s.logger.Error("learning cycle failed", "error", err)
	}
}
