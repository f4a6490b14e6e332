package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// #region redis-store
// redisKeyPrefix namespaces device state keys.
const redisKeyPrefix = "aligner:state:"

// RedisStore keeps the latest blob per device in a Redis hash with the version id
// alongside it. It holds no history; Rollback is only available on the SQLite store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// ConnectRedis creates a RedisStore from a redis:// URL.
func ConnectRedis(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// Close releases the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func redisKey(deviceKey string) string {
	return redisKeyPrefix + deviceKey
}

func (r *RedisStore) Load(ctx context.Context, deviceKey string) (string, error) {
	blob, err := r.client.HGet(ctx, redisKey(deviceKey), "blob").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis load %s: %w", deviceKey, err)
	}
	return blob, nil
}

func (r *RedisStore) Save(ctx context.Context, deviceKey, blob string) (string, error) {
	id := uuid.New().String()
	if err := r.client.HSet(ctx, redisKey(deviceKey), "blob", blob, "version", id).Err(); err != nil {
		return "", fmt.Errorf("redis save %s: %w", deviceKey, err)
	}
	return id, nil
}

func (r *RedisStore) Delete(ctx context.Context, deviceKey string) error {
	if err := r.client.Del(ctx, redisKey(deviceKey)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", deviceKey, err)
	}
	return nil
}

// #endregion redis-store
