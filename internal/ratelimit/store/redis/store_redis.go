// Package redis implements the sliding-window admission store on a Redis
// sorted set. The whole check-and-record step runs inside one Lua script, so
// the limiter's guarantee holds across processes: concurrent callers for the
// same identifier are serialized by Redis itself.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"aegis/internal/ratelimit/models"
	"aegis/pkg/requestcontext"
)

// allowScript trims expired entries, counts what remains, and records the new
// admission only when the count is under the limit.
//
// KEYS[1] window key
// ARGV[1] now (unix micros), ARGV[2] window (micros), ARGV[3] limit, ARGV[4] member
// Returns {allowed, count, oldest}.
var allowScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, oldest[2] or now}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, math.ceil(window / 1000))
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, count + 1, oldest[2] or now}
`)

// RedisWindowStore implements WindowStore backed by Redis sorted sets.
type RedisWindowStore struct {
	client *goredis.Client
}

// New creates a Redis-backed window store.
func New(client *goredis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

// Allow checks and records one admission atomically.
func (s *RedisWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)
	member := fmt.Sprintf("%d-%d", now.UnixNano(), limit)

	raw, err := allowScript.Run(ctx, s.client,
		[]string{"ratelimit:" + key},
		now.UnixMicro(), window.Microseconds(), limit, member,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("ratelimit allow script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("ratelimit allow script: unexpected reply %v", raw)
	}

	allowed := toInt64(raw[0]) == 1
	count := int(toInt64(raw[1]))
	oldest := time.UnixMicro(toInt64(raw[2]))
	resetAt := oldest.Add(window)

	res := &models.Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(0, limit-count),
		ResetAt:   resetAt,
	}
	if !allowed {
		res.RetryAfter = retryAfterSeconds(resetAt, now)
	}
	return res, nil
}

// Reset clears the window for a key.
func (s *RedisWindowStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, "ratelimit:"+key).Err()
}

// CurrentCount returns the number of admissions currently inside the window.
func (s *RedisWindowStore) CurrentCount(ctx context.Context, key string) (int, error) {
	n, err := s.client.ZCard(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit zcard: %w", err)
	}
	return int(n), nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		var out int64
		_, _ = fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
