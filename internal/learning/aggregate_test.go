package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/compliance-intelligence/internal/model"
)

func samples(actionType string, severity model.Severity, confidence model.Confidence, successes, failures int) []model.FeedbackSample {
	var out []model.FeedbackSample
	for i := 0; i < successes; i++ {
		out = append(out, model.FeedbackSample{ActionType: actionType, Severity: severity, Confidence: confidence, Kind: model.FeedbackActionCompleted})
	}
	for i := 0; i < failures; i++ {
		out = append(out, model.FeedbackSample{ActionType: actionType, Severity: severity, Confidence: confidence, Kind: model.FeedbackExplicitWrong})
	}
	return out
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		want model.Adjustment
		rate float64
	}{
		{rate: 0, want: model.AdjustRaiseActionThreshold},
		{rate: 0.39, want: model.AdjustRaiseActionThreshold},
		{rate: 0.4, want: model.AdjustDecreasePriority},
		{rate: 0.59, want: model.AdjustDecreasePriority},
		{rate: 0.6, want: model.AdjustMaintain},
		{rate: 0.84, want: model.AdjustMaintain},
		{rate: 0.85, want: model.AdjustLowerActionThreshold},
		{rate: 1, want: model.AdjustLowerActionThreshold},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Recommend(tt.rate), "rate %.2f", tt.rate)
	}
}

func TestAggregate_MinSampleSize(t *testing.T) {
	in := samples("update_document", model.SeverityHigh, model.ConfidenceHigh, 1, 3)
	in = append(in, samples("sign_agreement", model.SeverityMedium, model.ConfidenceLow, 5, 0)...)
	// Views carry no outcome and neither count nor fill a group.
	for i := 0; i < 10; i++ {
		in = append(in, model.FeedbackSample{ActionType: "update_document", Severity: model.SeverityHigh, Confidence: model.ConfidenceHigh, Kind: model.FeedbackImplicitView})
	}

	suggestions, considered := Aggregate(in, nil, 5, model.DefaultSuccessPrior)
	assert.Equal(t, 9, considered)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, "sign_agreement", s.ActionType)
	assert.Equal(t, 5, s.SampleSize)
	assert.InDelta(t, 1.0, s.SuccessRateObserved, 1e-9)
	assert.InDelta(t, 0.8, s.BaselineSuccessRate, 1e-9)
	assert.InDelta(t, 0.2, s.PerformanceDelta, 1e-9)
	assert.Equal(t, model.AdjustLowerActionThreshold, s.RecommendedAdjustment)
}

func TestAggregate_BaselineFromPrevious(t *testing.T) {
	previous := []model.Suggestion{{
		ActionType:          "update_document",
		SeverityBucket:      model.SeverityHigh,
		ConfidenceBucket:    model.ConfidenceHigh,
		SuccessRateObserved: 0.5,
	}}
	in := samples("update_document", model.SeverityHigh, model.ConfidenceHigh, 1, 4)

	suggestions, _ := Aggregate(in, previous, 5, model.DefaultSuccessPrior)
	require.Len(t, suggestions, 1)
	assert.InDelta(t, 0.2, suggestions[0].SuccessRateObserved, 1e-9)
	assert.InDelta(t, 0.5, suggestions[0].BaselineSuccessRate, 1e-9)
	assert.InDelta(t, -0.3, suggestions[0].PerformanceDelta, 1e-9)
	assert.Equal(t, model.AdjustRaiseActionThreshold, suggestions[0].RecommendedAdjustment)
}

func TestAggregate_DeterministicOrder(t *testing.T) {
	in := samples("b_type", model.SeverityLow, model.ConfidenceLow, 5, 0)
	in = append(in, samples("a_type", model.SeverityLow, model.ConfidenceLow, 5, 0)...)
	in = append(in, samples("a_type", model.SeverityHigh, model.ConfidenceLow, 5, 0)...)

	suggestions, _ := Aggregate(in, nil, 5, model.DefaultSuccessPrior)
	require.Len(t, suggestions, 3)
	assert.Equal(t, "a_type|high|low", suggestions[0].GroupKey())
	assert.Equal(t, "a_type|low|low", suggestions[1].GroupKey())
	assert.Equal(t, "b_type|low|low", suggestions[2].GroupKey())
}
