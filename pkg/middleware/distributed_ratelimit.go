package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces rate limit counters in Redis
const DefaultRedisPrefix = "pantry:ratelimit"

// fixedWindow counts a hit and starts the window on the first one. Running
// it as a script keeps INCR and PEXPIRE atomic, so a crash between them
// cannot leave a counter that never expires.
var fixedWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// DistributedRateLimiter is a fixed-window limiter kept in Redis, so every
// API instance draws from the same budget
type DistributedRateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a limiter whose keys live under prefix
// (DefaultRedisPrefix when empty)
func NewDistributedRateLimiter(redisClient *redis.Client, config RateLimitConfig, prefix string) *DistributedRateLimiter {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &DistributedRateLimiter{redis: redisClient, config: config, prefix: prefix}
}

func (rl *DistributedRateLimiter) redisKey(key string) string {
	return rl.prefix + ":" + key
}

// Allow implements Limiter. Redis failures allow the request and return the
// error for logging.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	window := rl.config.WindowDuration.Milliseconds()
	res, err := fixedWindow.Run(ctx, rl.redis, []string{rl.redisKey(key)}, window).Slice()
	if err != nil {
		return true, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 2 {
		return true, 0, fmt.Errorf("unexpected rate limit reply: %v", res)
	}

	count, _ := res[0].(int64)
	if count <= int64(rl.config.RequestsPerWindow) {
		return true, 0, nil
	}

	ttl, _ := res[1].(int64)
	if ttl <= 0 {
		return false, rl.config.WindowDuration, nil
	}
	return false, time.Duration(ttl) * time.Millisecond, nil
}

// Remaining returns how many requests key may still make in the current window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	used, err := rl.redis.Get(ctx, rl.redisKey(key)).Int()
	if errors.Is(err, redis.Nil) {
		return rl.config.RequestsPerWindow, nil
	}
	if err != nil {
		return 0, err
	}
	if used >= rl.config.RequestsPerWindow {
		return 0, nil
	}
	return rl.config.RequestsPerWindow - used, nil
}

// Reset forgets the hits of key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.redisKey(key)).Err()
}
