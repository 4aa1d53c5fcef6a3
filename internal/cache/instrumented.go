package cache

import (
	"context"
	"strings"

	"github.com/MrSnakeDoc/mapmarks/internal/metrics"
)

// Instrumented counts hits, misses and invalidations of the wrapped cache.
type Instrumented struct {
	Cache
}

func WithMetrics(c Cache) *Instrumented {
	return &Instrumented{Cache: c}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool) {
	data, ok := i.Cache.Get(ctx, key)
	if ok {
		metrics.CacheHits.WithLabelValues(metricKey(key)).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(metricKey(key)).Inc()
	}
	return data, ok
}

func (i *Instrumented) InvalidateAll(ctx context.Context) error {
	metrics.CacheInvalidations.Inc()
	return i.Cache.InvalidateAll(ctx)
}

// metricKey folds per-user keys into one label value.
func metricKey(key string) string {
	if strings.HasPrefix(key, keyUserPrefix) {
		return "users"
	}
	return key
}
