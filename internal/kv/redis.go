package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as plain Redis strings.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapRedis("get", key, err)
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return wrapRedis("set", key, err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return wrapRedis("del", key, err)
	}
	return nil
}

// wrapRedis maps maxmemory rejections ("OOM command not allowed ...") to
// ErrQuotaExceeded.
func wrapRedis(op, key string, err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: redis %s %s: %w", ErrQuotaExceeded, op, key, err)
	}
	return fmt.Errorf("%w: redis %s %s: %w", ErrUnavailable, op, key, err)
}
