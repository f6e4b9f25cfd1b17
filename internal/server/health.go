package server

import (
	"context"
	"fmt"
	"time"
)

// healthCheck pings the database, caching the result briefly and
// deduplicating concurrent probes. /health is unauthenticated and not
// rate limited, so probes must not stampede the pool.
func (h *Handlers) healthCheck(ctx context.Context) error {
	// Fast path: return the cached result if fresh.
	if time.Since(time.Unix(0, h.healthAt.Load())) < 5*time.Second {
		return h.loadHealthErr()
	}

	// Deduplicate concurrent checks. Use context.Background() instead of the
	// caller's ctx because singleflight reuses the first caller's context;
	// if that caller cancels, all waiters would get a stale error.
	result, _, _ := h.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := h.DB.Ping(checkCtx); err != nil {
			h.storeHealthErr(fmt.Errorf("server: database unhealthy: %w", err))
		} else {
			h.storeHealthErr(nil)
		}
		h.healthAt.Store(time.Now().UnixNano())
		return h.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// storeHealthErr stores an error (or nil) in the atomic.Value.
// atomic.Value cannot store nil directly, so we wrap it in a pointer.
func (h *Handlers) storeHealthErr(err error) {
	h.healthErr.Store(&err)
}

func (h *Handlers) loadHealthErr() error {
	v := h.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}
