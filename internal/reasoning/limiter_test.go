package reasoning

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowClient struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (c *slowClient) Generate(ctx context.Context, _ Kind, _ Input) (Result, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-time.After(c.delay):
		return Result{Payload: "ok"}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func TestLimitedClient_BoundsConcurrency(t *testing.T) {
	inner := &slowClient{delay: 20 * time.Millisecond}
	client := NewLimitedClient(inner, 0, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Generate(context.Background(), KindSolution, Input{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, inner.peak.Load(), int32(2))
}

func TestLimitedClient_CanceledWhileWaiting(t *testing.T) {
	inner := &slowClient{delay: time.Second}
	client := NewLimitedClient(inner, 0, 1)

	go func() { _, _ = client.Generate(context.Background(), KindSolution, Input{}) }()
	require.Eventually(t, func() bool { return inner.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, KindSolution, Input{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
