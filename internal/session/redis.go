package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key used when none is configured.
const DefaultRedisKey = "session:" + StorageKey

// RedisStorage persists the session id in Redis without expiry.
type RedisStorage struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStorage stores the id under key (DefaultRedisKey when empty).
func NewRedisStorage(client redis.UniversalClient, key string) *RedisStorage {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStorage{client: client, key: key}
}

// Load returns the stored session id.
func (r *RedisStorage) Load(ctx context.Context) (string, error) {
	id, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return id, nil
}

// Save stores the session id with no TTL.
func (r *RedisStorage) Save(ctx context.Context, id string) error {
	if err := r.client.Set(ctx, r.key, id, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
