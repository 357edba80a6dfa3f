package learning

import (
	"sort"

	"github.com/Veraticus/compliance-intelligence/internal/model"
)

// Success-rate bands that select an adjustment.
const (
	RaiseThresholdBelow    = 0.4
	DecreasePriorityBelow  = 0.6
	LowerThresholdAtOrOver = 0.85
)

// Recommend maps an observed success rate onto an adjustment.
func Recommend(rate float64) model.Adjustment {
	switch {
	case rate < RaiseThresholdBelow:
		return model.AdjustRaiseActionThreshold
	case rate < DecreasePriorityBelow:
		return model.AdjustDecreasePriority
	case rate >= LowerThresholdAtOrOver:
		return model.AdjustLowerActionThreshold
	default:
		return model.AdjustMaintain
	}
}

type groupKey struct {
	actionType string
	severity   model.Severity
	confidence model.Confidence
}

type tally struct {
	total     int
	successes int
}

// Aggregate groups outcome-bearing samples by (action type, severity,
// confidence) and returns one suggestion per group with at least
// minSampleSize samples, plus the number of outcome-bearing samples seen.
// Baselines come from the matching group of previous, else prior.
func Aggregate(samples []model.FeedbackSample, previous []model.Suggestion, minSampleSize int, prior float64) ([]model.Suggestion, int) {
	baselines := make(map[string]float64, len(previous))
	for _, s := range previous {
		baselines[s.GroupKey()] = s.SuccessRateObserved
	}

	groups := make(map[groupKey]*tally)
	considered := 0
	for _, sample := range samples {
		success, ok := sample.Kind.Outcome()
		if !ok {
			continue
		}
		considered++
		key := groupKey{actionType: sample.ActionType, severity: sample.Severity, confidence: sample.Confidence}
		t, exists := groups[key]
		if !exists {
			t = &tally{}
			groups[key] = t
		}
		t.total++
		if success {
			t.successes++
		}
	}

	suggestions := make([]model.Suggestion, 0, len(groups))
	for key, t := range groups {
		if t.total < minSampleSize {
			continue
		}
		rate := float64(t.successes) / float64(t.total)
		s := model.Suggestion{
			ActionType:          key.actionType,
			SeverityBucket:      key.severity,
			ConfidenceBucket:    key.confidence,
			SampleSize:          t.total,
			SuccessRateObserved: rate,
		}
		baseline, ok := baselines[s.GroupKey()]
		if !ok {
			baseline = prior
		}
		s.BaselineSuccessRate = baseline
		s.PerformanceDelta = rate - baseline
		s.RecommendedAdjustment = Recommend(rate)
		suggestions = append(suggestions, s)
	}

	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].GroupKey() < suggestions[j].GroupKey()
	})
	return suggestions, considered
}
