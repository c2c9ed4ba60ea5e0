package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces rate limit counters in a shared Redis.
const redisKeyPrefix = "kuchikomi:ratelimit:"

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// shared by all API instances. Each window is one INCR'd key whose expiry is
// set when the window opens.
type RedisRateLimitStore struct {
	client redis.UniversalClient
}

// NewRedisRateLimitStore creates a Redis backed rate limit store.
func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (Decision, error) {
	redisKey := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX keeps the expiry of an open window.
	pipe.ExpireNX(ctx, redisKey, config.WindowDuration)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit pipeline for %s: %w", key, err)
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return Decision{Allowed: true, Remaining: config.RequestsPerWindow - count}, nil
	}

	retryAfter := int((ttl.Val() + time.Second - 1) / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}
