// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the Redis store cannot be reached.
var ErrRedisUnavailable = errors.New("rate limit store unavailable")

// slidingWindow keeps one sorted-set member per hit, scored in milliseconds.
// KEYS[1] key; ARGV: now ms, cutoff ms, limit, member, window ms.
// Returns {allowed, count, oldest score}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end

redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return {1, count + 1, 0}
`)

// RedisStore shares limiter state between instances through Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store on top of client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL parses a redis:// URL and checks connectivity.
func NewRedisStoreFromURL(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration, limit int, now time.Time) (Result, error) {
	nowMs := now.UnixMilli()
	args := []any{
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-window.Milliseconds(), 10),
		strconv.Itoa(limit),
		strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString(),
		strconv.FormatInt(window.Milliseconds(), 10),
	}
	vals, err := slidingWindow.Run(ctx, s.client, []string{key}, args...).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %v", ErrRedisUnavailable, vals)
	}

	if vals[0] == 0 {
		retry := time.Duration(vals[2]+window.Milliseconds()-nowMs) * time.Millisecond
		return Result{Allowed: false, RetryAfter: retry}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(vals[1])}, nil
}
