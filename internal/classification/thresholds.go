package classification

import (
	"strconv"

	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// Threshold values applied for learned adjustments.
const (
	RaisedMinImpactForAction = 5.0
	LoweredForceActionImpact = 7.0
)

// Thresholds are the learned constraints applied to a classification.
// The zero value changes nothing.
type Thresholds struct {
	// MinImpactForAction clears ActionRequired below this impact.
	MinImpactForAction float64
	// ForceActionAtImpact sets ActionRequired at or above this impact.
	ForceActionAtImpact float64
	// PriorityShift moves action priorities; positive is less urgent.
	PriorityShift       int
	DowngradeConfidence bool
}

// ThresholdsFor folds the suggestions of the (actionType, severity) group
// into thresholds. An empty confidence matches every confidence bucket.
func ThresholdsFor(suggestions []model.Suggestion, actionType string, severity model.Severity, confidence model.Confidence) Thresholds {
	var t Thresholds
	for _, s := range suggestions {
		if s.ActionType != actionType || s.SeverityBucket != severity {
			continue
		}
		if confidence != "" && s.ConfidenceBucket != confidence {
			continue
		}
		switch s.RecommendedAdjustment {
		case model.AdjustRaiseActionThreshold:
			t.MinImpactForAction = RaisedMinImpactForAction
			t.DowngradeConfidence = true
		case model.AdjustDecreasePriority:
			t.PriorityShift = 1
		case model.AdjustLowerActionThreshold:
			t.ForceActionAtImpact = LoweredForceActionImpact
		}
	}
	// Raising wins over lowering within one group.
	if t.MinImpactForAction > 0 {
		t.ForceActionAtImpact = 0
	}
	return t
}

// IsZero reports whether t changes nothing.
func (t Thresholds) IsZero() bool {
	return t == Thresholds{}
}

// Params renders the thresholds as reasoning hints.
func (t Thresholds) Params() map[string]string {
	params := map[string]string{}
	if t.MinImpactForAction > 0 {
		params["min_impact_for_action_required"] = strconv.FormatFloat(t.MinImpactForAction, 'f', 1, 64)
	}
	if t.ForceActionAtImpact > 0 {
		params["action_required_at_impact"] = strconv.FormatFloat(t.ForceActionAtImpact, 'f', 1, 64)
	}
	if t.PriorityShift > 0 {
		params["priority"] = "prefer less urgent priorities"
	}
	if t.DowngradeConfidence {
		params["confidence"] = "be conservative"
	}
	return params
}

// Apply enforces t on c in place.
func (t Thresholds) Apply(c *model.Classification) {
	if t.MinImpactForAction > 0 && c.ImpactScore < t.MinImpactForAction {
		c.ActionRequired = false
	}
	if t.ForceActionAtImpact > 0 && c.ImpactScore >= t.ForceActionAtImpact {
		c.ActionRequired = true
	}
	if t.DowngradeConfidence {
		c.Confidence = c.Confidence.Lower()
	}
	if t.PriorityShift != 0 {
		c.PrimaryAction.Priority = c.PrimaryAction.Priority.Shift(t.PriorityShift)
		for i := range c.SecondaryActions {
			c.SecondaryActions[i].Priority = c.SecondaryActions[i].Priority.Shift(t.PriorityShift)
		}
	}
}
