package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/agentre-bench/arb/harness/ports"
)

// TokenBucket is a per-key token bucket rate limiter. Acquire blocks until
// a token is available or the context is done, so parallel benchmark
// workers pace themselves instead of failing.
type TokenBucket struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   int
	refillRate time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucket creates a token bucket limiter with the given per-key
// capacity and time between token refills.
func NewTokenBucket(capacity int, refillRate time.Duration) *TokenBucket {
	if refillRate <= 0 {
		refillRate = time.Second
	}
	return &TokenBucket{
		buckets:    make(map[string]*bucket),
		capacity:   capacity,
		refillRate: refillRate,
	}
}

// Acquire takes a token for the key, waiting for a refill when the bucket
// is empty. The returned release puts the token back.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (release func(), err error) {
	for {
		if ok := tb.tryAcquire(key); ok {
			return func() { tb.refund(key) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(tb.refillRate):
		}
	}
}

func (tb *TokenBucket) tryAcquire(key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	b, exists := tb.buckets[key]
	if !exists {
		b = &bucket{tokens: tb.capacity, lastRefill: time.Now()}
		tb.buckets[key] = b
	}

	elapsed := time.Since(b.lastRefill)
	tokensToAdd := int(elapsed / tb.refillRate)
	if tokensToAdd > 0 {
		b.tokens = min(b.tokens+tokensToAdd, tb.capacity)
		b.lastRefill = b.lastRefill.Add(time.Duration(tokensToAdd) * tb.refillRate)
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (tb *TokenBucket) refund(key string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if b, exists := tb.buckets[key]; exists {
		b.tokens = min(b.tokens+1, tb.capacity)
	}
}

// Ensure TokenBucket implements the RateLimiter interface.
var _ ports.RateLimiter = (*TokenBucket)(nil)
