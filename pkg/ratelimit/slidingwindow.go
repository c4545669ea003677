// Package ratelimit provides the admission-control primitives used
// around every outbound generation-backend call: a sliding-window
// limiter, a token-bucket limiter, and a composite that requires every
// member to admit. Grounded on rate_limiter.py's
// SlidingWindowRateLimiter/TokenBucketRateLimiter/MultiRateLimiter, with
// the ring-buffer storage strategy grounded on
// joeycumines-go-utilpkg/catrate's Limiter (a conceptual reference for
// how to keep a fixed-size event window without a growing slice), and
// the token-bucket implementation delegating to golang.org/x/time/rate
// rather than reimplementing bucket refill arithmetic by hand.
package ratelimit

import (
	"container/ring"
	"context"
	"sync"
	"time"
)

// SlidingWindow admits at most maxRequests events in any trailing window
// of length window, backed by a fixed-capacity ring buffer of
// timestamps instead of an unbounded deque, so memory is bounded by
// maxRequests regardless of call volume.
type SlidingWindow struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	buf         *ring.Ring // each element is either nil or a time.Time
	count       int
	now         func() time.Time
}

func NewSlidingWindow(maxRequests int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		window:      window,
		maxRequests: maxRequests,
		buf:         ring.New(maxRequests),
		now:         time.Now,
	}
}

// NewPerMinute mirrors rate_limiter.py's max_per_minute convenience constructor.
func NewPerMinute(maxPerMinute int) *SlidingWindow {
	return NewSlidingWindow(maxPerMinute, time.Minute)
}

// NewPerSecond mirrors rate_limiter.py's max_per_second convenience constructor.
func NewPerSecond(maxPerSecond int) *SlidingWindow {
	return NewSlidingWindow(maxPerSecond, time.Second)
}

func (s *SlidingWindow) cleanupLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	r := s.buf
	for i := 0; i < s.maxRequests; i++ {
		if r.Value == nil {
			r = r.Next()
			continue
		}
		if t := r.Value.(time.Time); t.Before(cutoff) {
			r.Value = nil
			s.count--
		}
		r = r.Next()
	}
}

// TryAcquire attempts a single non-blocking admission, mirroring
// try_acquire in rate_limiter.py.
func (s *SlidingWindow) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.cleanupLocked(now)

	if s.count >= s.maxRequests {
		return false
	}

	s.buf = s.buf.Next()
	s.buf.Value = now
	s.count++
	return true
}

// Acquire blocks (respecting ctx and an optional timeout) until
// admission succeeds, mirroring acquire_sync/acquire's polling loop.
func (s *SlidingWindow) Acquire(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	if s.TryAcquire() {
		return true
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if s.TryAcquire() {
				return true
			}
			if timeout > 0 && time.Now().After(deadline) {
				return false
			}
		}
	}
}

// Stats mirrors rate_limiter.py's RateLimitStats.
type Stats struct {
	CurrentCount int
	MaxRequests  int
	WindowSecs   float64
}

func (s *SlidingWindow) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked(s.now())
	return Stats{CurrentCount: s.count, MaxRequests: s.maxRequests, WindowSecs: s.window.Seconds()}
}
