package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript mirrors the token-bucket Lua script pattern: refill by
// elapsed time * rate, then attempt to consume cost, atomically, so two
// gateway replicas racing on the same actor never both succeed for more
// tokens than the bucket holds.
//
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens/second)
// ARGV[2] = capacity
// ARGV[3] = cost
// ARGV[4] = now (unix seconds, float)
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 60)

return {allowed, tokens}
`)

// RedisLimiter implements Limiter against a shared Redis instance so a
// rate-limit policy is enforced consistently across gateway replicas.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisLimiter(client *redis.Client, keyPrefix string) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "grc:ratelimit"
	}
	return &RedisLimiter{client: client, keyPrefix: keyPrefix}
}

func (r *RedisLimiter) Allow(ctx context.Context, actorID string, policy Policy, cost int) (bool, error) {
	key := fmt.Sprintf("%s:%s", r.keyPrefix, actorID)

	rate := float64(policy.RequestsPerMinute) / 60.0
	if rate <= 0 {
		rate = 1.0
	}
	capacity := policy.Burst
	if capacity <= 0 {
		capacity = int(rate)
		if capacity <= 0 {
			capacity = 1
		}
	}
	now := float64(time.Now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, r.client, []string{key}, rate, capacity, cost, now).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis script: %w", err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return false, fmt.Errorf("ratelimit: unexpected lua script response")
	}
	allowed, _ := results[0].(int64)
	return allowed == 1, nil
}
