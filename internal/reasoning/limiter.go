package reasoning

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const defaultMaxConcurrent = 4

// LimitedClient bounds the request rate and the number of in-flight
// generations of the wrapped client.
type LimitedClient struct {
	inner   Client
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// NewLimitedClient wraps inner. requestsPerMinute <= 0 disables the rate limit.
func NewLimitedClient(inner Client, requestsPerMinute, maxConcurrent int) *LimitedClient {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), maxConcurrent)
	}
	return &LimitedClient{
		inner:   inner,
		limiter: limiter,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Generate waits for a concurrency slot and a rate token, then delegates.
func (c *LimitedClient) Generate(ctx context.Context, kind Kind, input Input) (Result, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Result{}, Transient(fmt.Errorf("waiting for generation slot: %w", err))
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, Transient(fmt.Errorf("rate limiter canceled: %w", err))
	}
	return c.inner.Generate(ctx, kind, input)
}
