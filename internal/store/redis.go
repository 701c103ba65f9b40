// redis.go -- go-redis client for frontend session storage.
//
// Session payloads are opaque bytes to this layer; the session package owns
// their shape. TTL on every key matches the session expiry so Redis evicts
// stale sessions on its own.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore wraps a Redis client for session payload operations.
type RedisSessionStore struct {
	rdb *redis.Client
}

// NewRedisClient parses redisURL, connects, and pings.
// Call once at startup...the returned client is safe for concurrent use.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// NewRedisSessionStore returns a session store sharing rdb's connection pool.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// GetSession returns the raw session payload stored under id.
// Returns ErrSessionNotFound on a miss; other errors are Redis failures.
func (s *RedisSessionStore) GetSession(ctx context.Context, id string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching session: %w", err)
	}
	return raw, nil
}

// SetSession stores data under id for ttl.
// Redis SET with TTL=0 means no expiry, so non-positive TTLs are rejected.
func (s *RedisSessionStore) SetSession(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("caching session: non-positive ttl %s", ttl)
	}
	if err := s.rdb.Set(ctx, sessionKey(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("caching session: %w", err)
	}
	return nil
}

// DeleteSession removes the session stored under id. Missing keys are not an error.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CheckHealth pings Redis.
func (s *RedisSessionStore) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
