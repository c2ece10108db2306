package harnessports

import "context"

// RateLimiter paces requests per provider so parallel benchmark runs stay
// inside vendor quotas.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
