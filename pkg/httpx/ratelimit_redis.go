package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCmdable is the subset of the go-redis client the limiter needs.
type RedisCmdable interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisLimiter counts requests per fixed window in Redis so that every
// replica sees the same budget.
type RedisLimiter struct {
	client RedisCmdable
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisLimiter creates a fixed-window limiter; name namespaces its keys.
func NewRedisLimiter(client RedisCmdable, name string, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "ratelimit:" + name + ":",
		limit:  int64(config.RequestsPerWindow),
		window: config.Window,
	}
}

// Allow implements Limiter. The increment, the expiry and the TTL read go
// out as one MULTI so a counter can never be left without an expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: %w", err)
	}

	if incr.Val() <= l.limit {
		return true, 0, nil
	}

	retry := ttl.Val()
	if retry <= 0 {
		retry = l.window
	}
	return false, retry, nil
}
