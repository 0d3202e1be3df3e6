// Package redisx wraps the shared Redis usage: client construction and the
// JSON read-through cache helper used by all three cache-owning services.
package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Cache is a thin JSON cache over Redis. Values are stored as JSON documents
// with a TTL; invalidation is point deletion. A value that fails to decode is
// deleted and reported as a miss so the caller refills from the source of
// truth.
type Cache struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewCache wraps an existing Redis client.
func NewCache(rdb *redis.Client, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{rdb: rdb, log: log}
}

// GetJSON loads key into dest. It returns false on a miss. Redis errors other
// than a missing key are returned so callers can decide whether to degrade.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// Bad payload: drop the key and treat as a miss so the caller refills.
		c.log.Warn("cache entry undecodable, deleting",
			zap.String("key", key),
			zap.Error(err))
		if delErr := c.rdb.Del(ctx, key).Err(); delErr != nil {
			c.log.Warn("failed to delete undecodable cache entry",
				zap.String("key", key),
				zap.Error(delErr))
		}
		return false, nil
	}
	return true, nil
}

// SetJSON stores value under key with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Used for post-commit invalidation; deleting a missing
// key is not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete %v: %w", keys, err)
	}
	return nil
}

// Ping reports whether the backing Redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
