package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces cache keys in shared stores.
const DefaultPrefix = "mapmarks:cache:"

// Redis stores entries as JSON strings. Keys also get a native EXPIRE of
// one TTL so abandoned entries do not accumulate.
type Redis struct {
	client *redis.Client
	opts   Options
}

func NewRedis(client *redis.Client, opts Options) *Redis {
	return &Redis{client: client, opts: opts.withDefaults()}
}

func (r *Redis) Backend() string { return "redis" }

func (r *Redis) key(k string) string { return r.opts.Prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.opts.Logger.Debug("cache read failed, treating as miss",
				logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		r.opts.Logger.Debug("cache entry unreadable, dropping",
			logger.String("key", key), logger.Error(err))
		_ = r.client.Del(ctx, r.key(key)).Err()
		return nil, false
	}
	if !e.fresh(r.opts.Clock(), r.opts.TTL) {
		_ = r.client.Del(ctx, r.key(key)).Err()
		return nil, false
	}
	return e.Data, true
}

func (r *Redis) Set(ctx context.Context, key string, data []byte) error {
	raw, err := encodeEntry(data, r.opts.Clock())
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), raw, r.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

// InvalidateAll removes every key under the prefix using SCAN, never KEYS.
func (r *Redis) InvalidateAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.opts.Prefix+"*", 100).Iterator()
	pipe := r.client.Pipeline()
	queued := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		queued++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	return nil
}
