package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkbabb/lexserve/pkg/hashkey"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := New(Config{
		DiskPath: dir,
		Namespaces: []NamespaceConfig{
			{Name: "entries", MemoryLimit: 64, TTL: time.Hour, DiskResident: true, Compression: CompressionLZ4},
			{Name: "provider", MemoryLimit: 64, TTL: time.Hour, DiskResident: true, Compression: CompressionGzip},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "entries", "hello", []byte("world"), time.Minute))

	v, ok, err := c.Get(ctx, "entries", "hello")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("world"), v)
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Get(context.Background(), "entries", "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_CompressionRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")

	require.NoError(t, c.Set(ctx, "provider", "k", payload, time.Minute))

	// Force a disk read by evicting from the memory tier.
	ns := c.namespace("provider")
	ns.mem.Remove(string(hashkey.CacheKey("provider", "k")))

	v, ok, err := c.Get(ctx, "provider", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, v)
}

func TestCache_GetOrBuild_CoalescesConcurrentBuilders(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var calls int64
	build := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return []byte("built"), nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([][]byte, n)
	errsOut := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrBuild(ctx, "entries", "coalesce-key", time.Minute, build)
			results[i], errsOut[i] = v, err
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt64(&calls), "builder should run exactly once")
	for i := 0; i < n; i++ {
		require.NoError(t, errsOut[i])
		require.Equal(t, []byte("built"), results[i])
	}
}

func TestCache_GetOrBuild_PropagatesBuilderError(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	wantErr := fmt.Errorf("boom")
	_, err := c.GetOrBuild(ctx, "entries", "err-key", time.Minute, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// A failed build must not poison the cache: a later successful build
	// should still run.
	v, err := c.GetOrBuild(ctx, "entries", "err-key", time.Minute, func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), v)
}

func TestCache_GetOrBuild_OriginatorCancellationDoesNotAbortWaiters(t *testing.T) {
	c := newTestCache(t)

	started := make(chan struct{})
	release := make(chan struct{})
	build := func(ctx context.Context) ([]byte, error) {
		close(started)
		select {
		case <-release:
			return []byte("built"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	originatorCtx, cancelOriginator := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var originatorErr error
	go func() {
		defer wg.Done()
		_, originatorErr = c.GetOrBuild(originatorCtx, "entries", "shared-key", time.Minute, build)
	}()

	<-started

	var waiterVal []byte
	var waiterErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		waiterVal, waiterErr = c.GetOrBuild(context.Background(), "entries", "shared-key", time.Minute, build)
	}()

	// Give the second caller a chance to coalesce onto the in-flight build
	// before the originator cancels.
	time.Sleep(10 * time.Millisecond)
	cancelOriginator()

	// The originator's cancellation must not tear down the shared build;
	// only once it actually completes should the waiter unblock.
	time.Sleep(10 * time.Millisecond)
	close(release)

	wg.Wait()

	require.ErrorIs(t, originatorErr, context.Canceled)
	require.NoError(t, waiterErr)
	require.Equal(t, []byte("built"), waiterVal)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "entries", "gone", []byte("x"), time.Minute))
	require.NoError(t, c.Delete(ctx, "entries", "gone"))
	_, ok, err := c.Get(ctx, "entries", "gone")
	require.NoError(t, err)
	require.False(t, ok)
}
