package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainarb/chainarb/internal/domain"
)

// negativeResult marks a symbol the resolver could not place on any chain.
// Caching it keeps hopeless symbols from burning resolver quota every pass;
// an empty string cannot be stored directly because it would be
// indistinguishable from a missing key on some client paths.
const negativeResult = "\x00none"

// ResolverCache implements domain.ResolverCache on Redis string keys.
type ResolverCache struct {
	rdb *redis.Client
}

func NewResolverCache(c *Client) *ResolverCache {
	return &ResolverCache{rdb: c.Underlying()}
}

func resolverKey(symbol string) string {
	return "resolve:" + strings.ToUpper(symbol)
}

// Get returns the cached resolver answer for symbol. found is true for
// cached negative results too, with an empty blockchain.
func (rc *ResolverCache) Get(ctx context.Context, symbol string) (string, bool, error) {
	val, err := rc.rdb.Get(ctx, resolverKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: resolver cache get %s: %w", symbol, err)
	}
	if val == negativeResult {
		return "", true, nil
	}
	return val, true, nil
}

// Set caches a resolver answer for symbol. An empty blockchain is stored as
// a negative result.
func (rc *ResolverCache) Set(ctx context.Context, symbol, blockchain string, ttl time.Duration) error {
	val := blockchain
	if val == "" {
		val = negativeResult
	}
	if err := rc.rdb.Set(ctx, resolverKey(symbol), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis: resolver cache set %s: %w", symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResolverCache = (*ResolverCache)(nil)
