package cache

import (
	"log/slog"
	"time"

	"github.com/Veraticus/compliance-intelligence/internal/common"
	"github.com/Veraticus/compliance-intelligence/internal/fuzzy"
	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// Defaults for Options.
const (
	DefaultAlpha           = 0.1
	DefaultMinSharedTokens = 3
	DefaultMinScore        = 0.0
)

// Options configures a SolutionCache.
type Options struct {
	Logger *slog.Logger
	// WaitTimeout bounds how long a caller waits for a generation it did not
	// start. Zero means only the caller's context applies.
	WaitTimeout     time.Duration
	Alpha           float64
	SuccessPrior    float64
	// MinScore is an optional Jaccard bar on top of
	// MinSharedTokens. Zero disables it.
	MinScore        float64
	MinSharedTokens int
	MaxCandidates   int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Alpha:           DefaultAlpha,
		SuccessPrior:    model.DefaultSuccessPrior,
		MinSharedTokens: DefaultMinSharedTokens,
		MinScore:        DefaultMinScore,
		MaxCandidates:   fuzzy.DefaultMaxCandidates,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Alpha <= 0 || o.Alpha > 1 {
		o.Alpha = d.Alpha
	}
	if o.SuccessPrior <= 0 || o.SuccessPrior > 1 {
		o.SuccessPrior = d.SuccessPrior
	}
	if o.MinSharedTokens <= 0 {
		o.MinSharedTokens = d.MinSharedTokens
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		o.MinScore = d.MinScore
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	o.Logger = common.LoggerOrDefault(o.Logger)
	return o
}

// UpdateSuccessRate applies one exponential moving average step.
func UpdateSuccessRate(old float64, success bool, alpha float64) float64 {
	s := 0.0
	if success {
		s = 1.0
	}
	next := old*(1-alpha) + s*alpha
	return min(max(next, 0), 1)
}
