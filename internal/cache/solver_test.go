package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/compliance-intelligence/internal/reasoning"
)

// MockReasoningClient implements reasoning.Client for testing.
type MockReasoningClient struct {
	mock.Mock
}

func (m *MockReasoningClient) Generate(ctx context.Context, kind reasoning.Kind, input reasoning.Input) (reasoning.Result, error) {
	args := m.Called(ctx, kind, input)
	if v, ok := args.Get(0).(reasoning.Result); ok {
		return v, args.Error(1)
	}
	return reasoning.Result{}, args.Error(1)
}

func TestSolve(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	client := &MockReasoningClient{}
	client.On("Generate", mock.Anything, reasoning.KindSolution, reasoning.Input{
		Category:    "legal",
		Title:       "Impressum missing",
		Description: "No imprint page",
	}).Return(reasoning.Result{Payload: "Add an imprint page.", ModelVersion: "claude-test"}, nil).Once()

	first, err := c.Solve(context.Background(), client, "legal", "Impressum missing", "No imprint page")
	require.NoError(t, err)
	assert.Equal(t, "Add an imprint page.", first.Solution.SolutionText)
	assert.Equal(t, "claude-test", first.Solution.ModelVersion)

	second, err := c.Solve(context.Background(), client, "legal", "Impressum missing", "No imprint page")
	require.NoError(t, err)
	assert.Equal(t, SourceExact, second.Source)

	client.AssertExpectations(t)
}

func TestSolve_TransientErrorPropagates(t *testing.T) {
	c, _ := newTestCache(t, DefaultOptions())
	client := &MockReasoningClient{}
	client.On("Generate", mock.Anything, reasoning.KindSolution, mock.Anything).
		Return(reasoning.Result{}, reasoning.Transient(assert.AnError)).Once()

	_, err := c.Solve(context.Background(), client, "legal", "Terms outdated", "Old law referenced")
	require.Error(t, err)
	assert.ErrorIs(t, err, reasoning.ErrTransient)
	assert.ErrorIs(t, err, assert.AnError)
	client.AssertExpectations(t)
}
