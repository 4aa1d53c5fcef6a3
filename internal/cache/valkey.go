package cache

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/valkey-io/valkey-go"
)

// Valkey mirrors Redis on a valkey-go client: same key layout, same entry format.
type Valkey struct {
	client valkey.Client
	opts   Options
}

// DialValkey connects to a single Valkey node.
func DialValkey(addr string, opts Options) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return NewValkey(client, opts), nil
}

func NewValkey(client valkey.Client, opts Options) *Valkey {
	return &Valkey{client: client, opts: opts.withDefaults()}
}

func (v *Valkey) Backend() string { return "valkey" }

func (v *Valkey) key(k string) string { return v.opts.Prefix + k }

func (v *Valkey) del(ctx context.Context, keys ...string) error {
	return v.client.Do(ctx, v.client.B().Del().Key(keys...).Build()).Error()
}

func (v *Valkey) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := v.client.Do(ctx, v.client.B().Get().Key(v.key(key)).Build()).AsBytes()
	if err != nil {
		if !valkey.IsValkeyNil(err) {
			v.opts.Logger.Debug("cache read failed, treating as miss",
				logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil || !e.fresh(v.opts.Clock(), v.opts.TTL) {
		_ = v.del(ctx, v.key(key))
		return nil, false
	}
	return e.Data, true
}

func (v *Valkey) Set(ctx context.Context, key string, data []byte) error {
	raw, err := encodeEntry(data, v.opts.Clock())
	if err != nil {
		return err
	}
	cmd := v.client.B().Set().Key(v.key(key)).Value(string(raw)).Ex(v.opts.TTL).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

func (v *Valkey) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		cmd := v.client.B().Scan().Cursor(cursor).Match(v.opts.Prefix + "*").Count(100).Build()
		entry, err := v.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(entry.Elements) > 0 {
			if err := v.del(ctx, entry.Elements...); err != nil {
				return fmt.Errorf("failed to flush cache: %w", err)
			}
		}
		if entry.Cursor == 0 {
			return nil
		}
		cursor = entry.Cursor
	}
}

// Close releases the client.
func (v *Valkey) Close() {
	v.client.Close()
}
