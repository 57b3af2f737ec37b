package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLimiterSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "rl:checkout:"}

	ctx := context.Background()
	window := time.Minute
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "203.0.113.7", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d should fit in the window", i)
		require.Equal(t, max-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "203.0.113.7", window, max)
	require.NoError(t, err)
	require.False(t, allowed, "window is full")
	require.Zero(t, remaining)

	// another client key is counted independently
	allowed, _, _, err = limiter.Allow(ctx, "198.51.100.4", window, max)
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "203.0.113.7", window, max)
	require.NoError(t, err)
	require.True(t, allowed, "old events fall out of the window")
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "key", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
