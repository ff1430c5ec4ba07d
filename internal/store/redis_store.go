package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
)

// RedisStore keeps snapshots as plain string values under a key prefix.
// Values never expire; session state must outlive any TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// snapshotKey returns the redis key for a snapshot key.
func (s *RedisStore) snapshotKey(key string) string {
	return fmt.Sprintf("%ssnapshot:%s", s.prefix, key)
}

func (s *RedisStore) LoadSnapshot(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) StoreSnapshot(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, s.snapshotKey(key), data, 0).Err()
}

func (s *RedisStore) DeleteSnapshot(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.snapshotKey(key)).Err()
}

var _ domain.SnapshotStore = (*RedisStore)(nil)
