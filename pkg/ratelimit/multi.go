package ratelimit

import (
	"context"
	"time"
)

// Acquirer is satisfied directly by *SlidingWindow; a *TokenBucket
// satisfies it through AsAcquirer (called with a single token), so Multi
// can compose either kind of child limiter.
type Acquirer interface {
	Acquire(ctx context.Context, timeout time.Duration) bool
}

type slidingAcquirer struct{ *SlidingWindow }

func (s slidingAcquirer) Acquire(ctx context.Context, timeout time.Duration) bool {
	return s.SlidingWindow.Acquire(ctx, timeout)
}

type tokenAcquirer struct{ *TokenBucket }

func (t tokenAcquirer) Acquire(ctx context.Context, timeout time.Duration) bool {
	return t.TokenBucket.Acquire(ctx, 1, timeout)
}

// AsAcquirer adapts a *SlidingWindow or *TokenBucket to the Acquirer
// interface used by Multi.
func AsAcquirer(l interface{}) Acquirer {
	switch v := l.(type) {
	case *SlidingWindow:
		return slidingAcquirer{v}
	case *TokenBucket:
		return tokenAcquirer{v}
	default:
		return nil
	}
}

// Multi requires every child limiter to admit before the call is
// allowed through, mirroring rate_limiter.py's MultiRateLimiter, which
// splits a single timeout budget sequentially across its children.
type Multi struct {
	children []Acquirer
}

func NewMulti(children ...Acquirer) *Multi {
	return &Multi{children: children}
}

func (m *Multi) Acquire(ctx context.Context, timeout time.Duration) bool {
	if len(m.children) == 0 {
		return true
	}
	perChild := timeout
	if timeout > 0 {
		perChild = timeout / time.Duration(len(m.children))
	}
	deadline := time.Now().Add(timeout)
	for _, c := range m.children {
		budget := perChild
		if timeout > 0 {
			if remaining := time.Until(deadline); remaining < budget {
				budget = remaining
			}
			if budget < 0 {
				budget = 0
			}
		}
		if !c.Acquire(ctx, budget) {
			return false
		}
	}
	return true
}
