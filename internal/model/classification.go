package model

import (
	"sort"
	"time"
)

// Confidence is the coarse confidence bucket of a classification.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is a known confidence level.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Lower returns the next lower confidence level. Low stays low.
func (c Confidence) Lower() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Severity of a compliance change.
type Severity string

// Severity levels, most severe first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Priority of a recommended action.
type Priority string

// Priorities, most urgent first.
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var priorityOrder = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Shift moves the priority by steps; positive steps make it less urgent.
// The result is clamped to the known range. Unknown priorities are treated as medium.
func (p Priority) Shift(steps int) Priority {
	idx := 2
	for i, candidate := range priorityOrder {
		if candidate == p {
			idx = i
			break
		}
	}
	idx += steps
	if idx < 0 {
		idx = 0
	}
	if idx >= len(priorityOrder) {
		idx = len(priorityOrder) - 1
	}
	return priorityOrder[idx]
}

// MaxImpactScore is the upper bound of Classification.ImpactScore.
const MaxImpactScore = 10.0

// Action is a recommended step for the user.
type Action struct {
	Type             string   `json:"type"`
	Priority         Priority `json:"priority"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ButtonLabel      string   `json:"button_label"`
	EstimatedEffort  string   `json:"estimated_effort"`
	RequiresPaidTier bool     `json:"requires_paid_tier"`
}

// Classification is the structured verdict for a change, either global
// (empty Scope) or personalized for one user or tenant.
type Classification struct {
	ClassifiedAt     time.Time  `json:"classified_at"`
	ID               string     `json:"id"`
	SubjectID        string     `json:"subject_id"`
	Scope            string     `json:"scope,omitempty"`
	Confidence       Confidence `json:"confidence"`
	Severity         Severity   `json:"severity"`
	Reasoning        string     `json:"reasoning"`
	UserImpactText   string     `json:"user_impact_text"`
	ModelVersion     string     `json:"model_version"`
	CacheFingerprint string     `json:"cache_fingerprint,omitempty"`
	PrimaryAction    Action     `json:"primary_action"`
	SecondaryActions []Action   `json:"secondary_actions"`
	ImpactScore      float64    `json:"impact_score"`
	ActionRequired   bool       `json:"action_required"`
}

// SortForDisplay orders classifications for a user: action required first,
// then higher impact, then most recently classified.
func SortForDisplay(classifications []Classification) {
	sort.SliceStable(classifications, func(i, j int) bool {
		a, b := classifications[i], classifications[j]
		if a.ActionRequired != b.ActionRequired {
			return a.ActionRequired
		}
		if a.ImpactScore != b.ImpactScore {
			return a.ImpactScore > b.ImpactScore
		}
		return a.ClassifiedAt.After(b.ClassifiedAt)
	})
}
