package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T) *Redis {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedis(rdb)
}

func TestRedis_ExactlyLimitPerWindow(t *testing.T) {
	r := newRedisLimiter(t)
	// Pin the clock mid-bucket so the test never straddles a boundary.
	r.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	}

	ctx := context.Background()
	p := Policy{Limit: 5, Window: time.Minute}

	for i := range 5 {
		d, err := r.Allow(ctx, "client-1", p)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should be admitted", i+1)
	}

	d, err := r.Allow(ctx, "client-1", p)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 30*time.Second, d.RetryAfter)
}

func TestRedis_WindowResets(t *testing.T) {
	r := newRedisLimiter(t)
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	r.now = func() time.Time { return now }

	ctx := context.Background()
	p := Policy{Limit: 1, Window: time.Minute}

	d, err := r.Allow(ctx, "k", p)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = r.Allow(ctx, "k", p)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// The next wall-clock bucket counts from zero.
	now = now.Add(time.Minute)
	d, err = r.Allow(ctx, "k", p)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestRedis_KeysAreIndependent(t *testing.T) {
	r := newRedisLimiter(t)
	r.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	}

	ctx := context.Background()
	p := Policy{Limit: 1, Window: time.Minute}

	d, err := r.Allow(ctx, "a", p)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = r.Allow(ctx, "b", p)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestRedis_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedis(rdb)
	mr.Close()

	_, err = r.Allow(context.Background(), "k", Policy{Limit: 1, Window: time.Minute})
	require.ErrorIs(t, err, ErrUnavailable)
}
