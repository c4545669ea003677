package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestSharedWindow_AdmitsUpToLimitAcrossClients(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	a := NewSharedWindow(rdb, "fal-wan", 2, time.Minute)
	b := NewSharedWindow(rdb, "fal-wan", 2, time.Minute)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.TryAcquire(ctx)
	require.NoError(t, err)
	require.False(t, ok, "a third acquisition should be denied once the shared quota is exhausted")
}

func TestSharedWindow_ExpiresOldEntries(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	w := NewSharedWindow(rdb, "fal-kling", 1, 20*time.Millisecond)

	ok, err := w.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = w.TryAcquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	time.Sleep(40 * time.Millisecond)
	ok, err = w.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
