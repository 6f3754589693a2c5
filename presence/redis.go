package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache implements Cache on Redis. Useful when several enjoyer instances
// behind the same Steam account should share one presence snapshot.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed status cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func statusKey(friendID string) string {
	return fmt.Sprintf("presence:%s", friendID)
}

// Put stores a status under its friend id with a TTL.
func (c *RedisCache) Put(ctx context.Context, status FriendStatus) error {
	key := statusKey(status.ID)
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Get retrieves a status from Redis.
func (c *RedisCache) Get(ctx context.Context, friendID string) (*FriendStatus, error) {
	key := statusKey(friendID)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Not found is not an error, just means no snapshot
		}
		return nil, err
	}

	var status FriendStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

// Delete removes a status from Redis.
func (c *RedisCache) Delete(ctx context.Context, friendID string) error {
	key := statusKey(friendID)
	return c.client.Del(ctx, key).Err()
}
