package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache remembers recently validated sessions.
type SessionCache interface {
	Get(ctx context.Context, session string) (*User, bool, error)
	Set(ctx context.Context, session string, u *User) error
	Delete(ctx context.Context, session string) error
}

const sessionKeyPrefix = "bff:session:"

// RedisSessionCache stores validated sessions in Redis for a short TTL.
// Keys are hashed so raw cookie values never reach Redis.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionCache returns a cache backed by client.
func NewRedisSessionCache(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	return &RedisSessionCache{client: client, ttl: ttl}
}

func sessionKey(session string) string {
	sum := sha256.Sum256([]byte(session))
	return sessionKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached user for session, if present.
func (c *RedisSessionCache) Get(ctx context.Context, session string) (*User, bool, error) {
	data, err := c.client.Get(ctx, sessionKey(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session cache get: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, false, fmt.Errorf("session cache decode: %w", err)
	}
	return &u, true, nil
}

// Set caches u for session.
func (c *RedisSessionCache) Set(ctx context.Context, session string, u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, sessionKey(session), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("session cache set: %w", err)
	}
	return nil
}

// Delete forgets session.
func (c *RedisSessionCache) Delete(ctx context.Context, session string) error {
	if err := c.client.Del(ctx, sessionKey(session)).Err(); err != nil {
		return fmt.Errorf("session cache delete: %w", err)
	}
	return nil
}

// NoopSessionCache never caches.
type NoopSessionCache struct{}

func (NoopSessionCache) Get(context.Context, string) (*User, bool, error) { return nil, false, nil }
func (NoopSessionCache) Set(context.Context, string, *User) error         { return nil }
func (NoopSessionCache) Delete(context.Context, string) error             { return nil }
