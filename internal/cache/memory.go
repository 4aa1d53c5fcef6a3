package cache

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

// Options configures every backend.
type Options struct {
	TTL    time.Duration // <= 0 => DefaultTTL
	Clock  Clock         // nil => time.Now
	Prefix string        // key namespace for shared stores, ignored by Memory
	Logger logger.Logger // nil => no logging
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// Memory is an in-process cache guarded by a RWMutex.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	opts    Options
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		entries: make(map[string]Entry),
		opts:    opts.withDefaults(),
	}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := m.opts.Clock()
	if e.fresh(now, m.opts.TTL) {
		return e.Data, true
	}

	m.mu.Lock()
	// Re-check under the write lock: a concurrent Set may have refreshed it.
	if cur, ok := m.entries[key]; ok && !cur.fresh(now, m.opts.TTL) {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil, false
}

func (m *Memory) Set(_ context.Context, key string, data []byte) error {
	raw, err := encodeEntry(data, m.opts.Clock())
	if err != nil {
		return err
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, fresh or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
