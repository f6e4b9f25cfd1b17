package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket tracks the token level for one key. Each bucket carries its
// own lock so hot tenants don't contend with each other.
type bucket struct {
	mu     sync.Mutex
	level  float64
	filled time.Time // instant of the last refill calculation
}

// MemoryLimiter is a per-key token bucket backed by process memory.
// Tokens accrue at a fixed per-second rate up to a burst capacity; every
// allowed request spends one. A background sweep drops buckets idle for
// ten minutes so abandoned keys don't accumulate.
type MemoryLimiter struct {
	perSecond float64
	capacity  float64

	buckets sync.Map // string -> *bucket

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemoryLimiter creates a limiter allowing a sustained rate of
// perSecond requests per key, with bursts up to burst. Call Close to
// stop the background sweep.
func NewMemoryLimiter(perSecond float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		perSecond: perSecond,
		capacity:  float64(burst),
		closed:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Allow spends one token from key's bucket, reporting false when the
// bucket is empty.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	entry, loaded := m.buckets.LoadOrStore(key, &bucket{level: m.capacity, filled: time.Now()})
	b := entry.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	if loaded {
		now := time.Now()
		b.level += now.Sub(b.filled).Seconds() * m.perSecond
		if b.level > m.capacity {
			b.level = m.capacity
		}
		b.filled = now
	}

	if b.level < 1 {
		return false, nil
	}
	b.level--
	return true, nil
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

const idleEviction = 10 * time.Minute

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.closed:
			return
		case <-ticker.C:
			m.dropIdle()
		}
	}
}

// dropIdle removes buckets whose last refill is older than the idle
// eviction window.
func (m *MemoryLimiter) dropIdle() {
	cutoff := time.Now().Add(-idleEviction)
	m.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := b.filled.Before(cutoff)
		b.mu.Unlock()
		if idle {
			m.buckets.Delete(key)
		}
		return true
	})
}
