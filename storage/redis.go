package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries under a key prefix in Redis. It lets several
// CLI processes on one machine share a login.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore. An empty prefix defaults to "sf".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sf"
	}
	return &RedisStore{redis: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: redis get %s: %w", key, err)
	}
	return v, nil
}

// SetMany writes all entries inside MULTI/EXEC.
func (s *RedisStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("storage: redis del: %w", err)
	}
	return nil
}

// Close does not close the shared client; its owner does.
func (s *RedisStore) Close() error { return nil }
