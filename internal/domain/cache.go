package domain

import (
	"context"
	"time"
)

// ResolverCache stores AI-resolver results so repeated lookups for the same
// symbol do not burn resolver quota. An empty cached value is a valid
// negative result ("resolver could not determine the chain").
type ResolverCache interface {
	Get(ctx context.Context, symbol string) (blockchain string, found bool, err error)
	Set(ctx context.Context, symbol, blockchain string, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting for outbound API calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// SignalBus provides pub/sub fan-out of detection events to in-process and
// dashboard consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
