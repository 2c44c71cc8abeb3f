package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in Redis under a per-profile prefix, so
// several terminals on different hosts can share one login.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, timeout: 3 * time.Second}
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, redisErr("get "+key, err)
	}
	return v, true, nil
}

func (r *RedisStore) Put(entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]interface{}, 0, len(entries)*2)
	for _, k := range keys {
		pairs = append(pairs, r.key(k), entries[k])
	}
	// MSET is atomic.
	if err := r.client.MSet(ctx, pairs...).Err(); err != nil {
		return redisErr("mset", err)
	}
	return nil
}

func (r *RedisStore) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return redisErr("del", err)
	}
	return nil
}

// redisErr maps a closed client onto ErrClosed.
func redisErr(op string, err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("redis %s: %w", op, ErrClosed)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}
