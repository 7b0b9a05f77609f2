package ratelimit

import "context"

// RateLimiter controls outbound request throughput per provider.
type RateLimiter interface {
	Allow(ctx context.Context, provider string) (bool, error)
	Wait(ctx context.Context, provider string) error
}
