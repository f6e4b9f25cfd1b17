// Package ratelimit throttles command traffic per key.
//
// The in-process MemoryLimiter covers a single instance. Deployments
// running several instances behind a balancer swap in a shared-store
// implementation; Limiter is the seam.
package ratelimit

import "context"

// Limiter decides whether a request identified by key may proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether the request should proceed. Keys are opaque
	// to the limiter; callers build them ("tenant:<id>", an IP, ...).
	// An error means the limiter itself is broken; callers fail open so
	// a limiter outage never takes down command traffic.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases background resources.
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
