package buffer

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// RedisStore persists category collections as Redis lists, one key per
// category. This is the default backend for edge deployments.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, category telemetry.Category, payload []byte) error {
	if err := s.client.RPush(ctx, s.key(category), payload).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", category, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, category telemetry.Category) ([][]byte, error) {
	values, err := s.client.LRange(ctx, s.key(category), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", category, err)
	}

	payloads := make([][]byte, 0, len(values))
	for _, v := range values {
		payloads = append(payloads, []byte(v))
	}
	return payloads, nil
}

func (s *RedisStore) Clear(ctx context.Context, category telemetry.Category) error {
	if err := s.client.Del(ctx, s.key(category)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", category, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(category telemetry.Category) string {
	return "buffer:" + string(category)
}
