// Package ratelimit provides per-key token bucket rate limiting with
// non-blocking (Allow) and blocking (Wait) variants.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter hands out an independent rate.Limiter per key.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	stopOnce sync.Once
}

// New creates a keyed rate limiter allowing rps requests per second
// with the given burst per key.
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request for key may proceed right now. Use
// for inbound request protection.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for key is allowed or ctx is canceled.
// Use for outbound calls that should pace themselves.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	limiter, ok := krl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(krl.limit, krl.burst)
		krl.limiters[key] = limiter
	}
	return limiter
}

// Stop releases the limiter. Entries are never evicted while running
// since rate.Limiter does not track last access; a deployment facing
// many distinct client IPs would wrap this with last-access tracking.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		krl.mu.Lock()
		defer krl.mu.Unlock()
		clear(krl.limiters)
	})
}
