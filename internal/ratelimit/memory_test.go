package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// backdate rewinds a bucket's refill instant so tests can simulate idle
// time without sleeping.
func backdate(t *testing.T, m *MemoryLimiter, key string, by time.Duration) {
	t.Helper()
	entry, ok := m.buckets.Load(key)
	require.True(t, ok, "bucket %q should exist", key)
	b := entry.(*bucket)
	b.mu.Lock()
	b.filled = b.filled.Add(-by)
	b.mu.Unlock()
}

func TestMemoryLimiterBurst(t *testing.T) {
	m := NewMemoryLimiter(10, 3)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok, "request %d should be within burst", i)
	}

	ok, err := m.Allow(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok, "request past the burst should be denied")
}

func TestMemoryLimiterRefill(t *testing.T) {
	m := NewMemoryLimiter(10, 2)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = m.Allow(ctx, "k1")
	}
	ok, err := m.Allow(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)

	// A second of simulated idle time at 10/s refills well past one token.
	backdate(t, m, "k1", time.Second)

	ok, err = m.Allow(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok, "bucket should refill after idle time")
}

func TestMemoryLimiterRefillCapsAtBurst(t *testing.T) {
	m := NewMemoryLimiter(1000, 3)
	defer m.Close()
	ctx := context.Background()

	_, _ = m.Allow(ctx, "k1")
	backdate(t, m, "k1", time.Hour)

	// A long idle period must not accumulate beyond the burst capacity.
	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok, "request %d should succeed after long idle", i)
	}
	ok, err := m.Allow(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok, "tokens must cap at burst")
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	m := NewMemoryLimiter(10, 1)
	defer m.Close()
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "a")
	require.True(t, ok)
	ok, _ = m.Allow(ctx, "a")
	require.False(t, ok, "key a is exhausted")

	ok, _ = m.Allow(ctx, "b")
	require.True(t, ok, "key b has its own bucket")
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	m := NewMemoryLimiter(100, 50)
	defer m.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	allowed := make([]int, 10)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				ok, err := m.Allow(ctx, "shared")
				if err != nil {
					t.Errorf("Allow: %v", err)
					return
				}
				if ok {
					allowed[idx]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range allowed {
		total += n
	}
	// 100 near-simultaneous requests against a burst of 50.
	require.GreaterOrEqual(t, total, 1)
	require.LessOrEqual(t, total, 50)
}

func TestMemoryLimiterDropIdle(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	defer m.Close()
	ctx := context.Background()

	_, _ = m.Allow(ctx, "stale")
	_, _ = m.Allow(ctx, "fresh")
	backdate(t, m, "stale", 15*time.Minute)

	m.dropIdle()

	_, exists := m.buckets.Load("stale")
	require.False(t, exists, "idle bucket should be evicted")
	_, exists = m.buckets.Load("fresh")
	require.True(t, exists, "active bucket should survive the sweep")
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	var l NoopLimiter
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		ok, err := l.Allow(ctx, "anything")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, l.Close())
}
