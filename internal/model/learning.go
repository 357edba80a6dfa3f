package model

import "time"

// Adjustment is a directional tuning recommendation emitted by a learning cycle.
type Adjustment string

// Adjustments.
const (
	AdjustRaiseActionThreshold Adjustment = "raise_action_threshold"
	AdjustLowerActionThreshold Adjustment = "lower_action_threshold"
	AdjustDecreasePriority     Adjustment = "decrease_priority"
	AdjustMaintain             Adjustment = "maintain"
)

// Suggestion is the adjustment recommended for one
// (action type, severity, confidence) group.
type Suggestion struct {
	ActionType            string     `json:"action_type" yaml:"action_type"`
	SeverityBucket        Severity   `json:"severity_bucket" yaml:"severity_bucket"`
	ConfidenceBucket      Confidence `json:"confidence_bucket" yaml:"confidence_bucket"`
	RecommendedAdjustment Adjustment `json:"recommended_adjustment" yaml:"recommended_adjustment"`
	SampleSize            int        `json:"sample_size" yaml:"sample_size"`
	SuccessRateObserved   float64    `json:"success_rate_observed" yaml:"success_rate_observed"`
	BaselineSuccessRate   float64    `json:"baseline_success_rate" yaml:"baseline_success_rate"`
	PerformanceDelta      float64    `json:"performance_delta" yaml:"performance_delta"`
}

// GroupKey identifies the feedback group a suggestion was computed for.
func (s Suggestion) GroupKey() string {
	return s.ActionType + "|" + string(s.SeverityBucket) + "|" + string(s.ConfidenceBucket)
}

// LearningCycleResult is the published output of one learning cycle.
type LearningCycleResult struct {
	WindowStart             time.Time    `json:"window_start" yaml:"window_start"`
	ComputedAt              time.Time    `json:"computed_at" yaml:"computed_at"`
	ID                      string       `json:"id" yaml:"id"`
	Suggestions             []Suggestion `json:"suggestions" yaml:"suggestions"`
	ConsideredFeedbackCount int          `json:"considered_feedback_count" yaml:"considered_feedback_count"`
}
