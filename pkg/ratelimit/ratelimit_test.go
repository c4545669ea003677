package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow_AdmitsUpToLimit(t *testing.T) {
	w := NewSlidingWindow(3, time.Minute)
	for i := 0; i < 3; i++ {
		require.True(t, w.TryAcquire())
	}
	assert.False(t, w.TryAcquire())
}

func TestSlidingWindow_ExpiresOldEntries(t *testing.T) {
	w := NewSlidingWindow(1, 20*time.Millisecond)
	require.True(t, w.TryAcquire())
	assert.False(t, w.TryAcquire())
	time.Sleep(30 * time.Millisecond)
	assert.True(t, w.TryAcquire())
}

func TestTokenBucket_Burst(t *testing.T) {
	tb := NewTokenBucket(1, 2)
	assert.True(t, tb.TryAcquire(1))
	assert.True(t, tb.TryAcquire(1))
	assert.False(t, tb.TryAcquire(1))
}

func TestMulti_RequiresAllChildren(t *testing.T) {
	tight := NewSlidingWindow(1, time.Minute)
	loose := NewSlidingWindow(10, time.Minute)
	require.True(t, tight.TryAcquire())

	m := NewMulti(AsAcquirer(tight), AsAcquirer(loose))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.False(t, m.Acquire(ctx, 20*time.Millisecond))
}
