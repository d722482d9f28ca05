package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsBurstUpToCapacity(t *testing.T) {
	l := New(Config{Enabled: true, Capacity: 3, RefillPerSecond: 1})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "api.example.com"))
	}
	require.Less(t, time.Since(start), 200*time.Millisecond, "burst should not block")
}

func TestLimiter_ThrottlesAfterCapacity(t *testing.T) {
	l := New(Config{Enabled: true, Capacity: 1, RefillPerSecond: 5})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "host"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "host"))
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_DisabledNeverBlocks(t *testing.T) {
	l := New(Config{Enabled: false})
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(ctx, "host"))
	}
}

func TestLimiter_NotifyRateLimited_HonorsRetryAfter(t *testing.T) {
	l := New(Config{Enabled: true, Capacity: 100, RefillPerSecond: 100})
	l.NotifyRateLimited("host", 150*time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "host"))
	require.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestLimiter_NotifyRateLimited_DoublesWithoutRetryAfter(t *testing.T) {
	l := New(Config{Enabled: true, Capacity: 100, RefillPerSecond: 100, MinBackoff: 10 * time.Millisecond, MaxBackoff: time.Second})
	l.NotifyRateLimited("host", 0)
	first := l.bucketFor("host").currentBackoff
	l.NotifyRateLimited("host", 0)
	second := l.bucketFor("host").currentBackoff
	require.Equal(t, first*2, second)
}

func TestLimiter_ConcurrentHostsAreIndependent(t *testing.T) {
	l := New(Config{Enabled: true, Capacity: 2, RefillPerSecond: 2})
	ctx := context.Background()

	var wg sync.WaitGroup
	hosts := []string{"a.example.com", "b.example.com", "c.example.com"}
	for _, h := range hosts {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			require.NoError(t, l.Wait(ctx, h))
			require.NoError(t, l.Wait(ctx, h))
		}(h)
	}
	wg.Wait()

	require.Len(t, l.Snapshot(), 3)
}
