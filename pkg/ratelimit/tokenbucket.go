package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket wraps golang.org/x/time/rate.Limiter behind the same
// surface rate_limiter.py's TokenBucketRateLimiter exposes
// (TryAcquire/Acquire with tokens and an optional timeout), rather than
// hand-rolling the continuous-refill arithmetic the Python version
// implements itself.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket mirrors TokenBucketRateLimiter(rate, burst).
func NewTokenBucket(ratePerSecond float64, burst int) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (t *TokenBucket) TryAcquire(tokens int) bool {
	return t.limiter.AllowN(time.Now(), tokens)
}

func (t *TokenBucket) Acquire(ctx context.Context, tokens int, timeout time.Duration) bool {
	acquireCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	r := t.limiter.ReserveN(time.Now(), tokens)
	if !r.OK() {
		return false
	}
	delay := r.Delay()
	if delay == 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-acquireCtx.Done():
		r.Cancel()
		return false
	}
}
