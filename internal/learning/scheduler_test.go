package learning

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/compliance-intelligence/internal/testutil"
)

type countingArchiver struct {
	calls atomic.Int32
}

func (a *countingArchiver) Archive(context.Context) (int64, error) {
	a.calls.Add(1)
	return 0, nil
}

func TestScheduler_RunsUntilCanceled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cycle, err := NewCycle(db.Storage, Options{})
	require.NoError(t, err)

	archiver := &countingArchiver{}
	scheduler := NewScheduler(cycle, archiver, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return archiver.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	latest, err := cycle.Latest(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, latest.ID)
}
