package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketScript refills and charges one bucket atomically. It reads the clock
// from redis so API replicas with skewed clocks still agree on the refill.
//
// KEYS[1] bucket hash
// ARGV    capacity, refill per ms, cost, ttl ms
// returns {allowed, whole tokens left, retry after ms}
var bucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

tokens = math.min(capacity, tokens + math.max(0, now - ts) * refill)

local allowed = 0
local wait = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  wait = math.ceil((cost - tokens) / refill)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens), wait}
`)

// RedisTokenBucket shares one bucket per client across API replicas, so a
// client cannot multiply its budget by spreading wizard calls over them.
type RedisTokenBucket struct {
	client    redis.UniversalClient
	capacity  int64
	refill    float64
	ttl       time.Duration
	keyPrefix string
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, errors.New("redis client is required")
	case capacity <= 0:
		return nil, errors.New("capacity must be positive")
	case window <= 0:
		return nil, errors.New("window must be positive")
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &RedisTokenBucket{
		client:    client,
		capacity:  int64(capacity),
		refill:    float64(capacity) / float64(max(window.Milliseconds(), 1)),
		ttl:       2 * window,
		keyPrefix: keyPrefix,
	}, nil
}

func (l *RedisTokenBucket) Allow(ctx context.Context, subject string, cost int) (Decision, error) {
	cost = normalizeCost(cost)
	if int64(cost) > l.capacity {
		return Decision{}, fmt.Errorf("cost %d exceeds bucket capacity %d", cost, l.capacity)
	}

	reply, err := bucketScript.Run(ctx, l.client, []string{l.key(subject)},
		l.capacity, l.refill, cost, l.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("charge token bucket: %w", err)
	}
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("token bucket replied with %d values", len(reply))
	}

	return Decision{
		Allowed:    reply[0] == 1,
		Remaining:  reply[1],
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// key wraps the subject in a hash tag so a bucket always lands on one
// cluster slot.
func (l *RedisTokenBucket) key(subject string) string {
	return l.keyPrefix + ":{" + normalizeSubject(subject) + "}"
}
