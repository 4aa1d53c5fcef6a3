// Package cache is the response cache placed in front of the backend read
// endpoints. Entries are {data, timestamp} records that become misses once
// older than the configured TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Logical keys. Backends add their own namespace prefix.
const (
	KeyBookmarks  = "bookmarks"
	KeyCategories = "categories"
	KeyTags       = "tags"

	keyUserPrefix = "users:"
)

// ErrNotJSON is returned by Set for payloads that are not valid JSON.
var ErrNotJSON = errors.New("cache: payload is not valid JSON")

// DefaultTTL is how long a cached response stays valid.
const DefaultTTL = 5 * time.Minute

// UserKey returns the key for a single user lookup.
func UserKey(id int64) string {
	return keyUserPrefix + strconv.FormatInt(id, 10)
}

// Cache is implemented by every backend. Implementations are safe for
// concurrent use. Get never fails: unreadable entries are misses.
type Cache interface {
	// Get returns the payload stored under key if it is still fresh.
	// Expired entries are removed as a side effect.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores data under key with the current timestamp.
	Set(ctx context.Context, key string, data []byte) error
	// InvalidateAll removes every entry.
	InvalidateAll(ctx context.Context) error
	// Backend names the implementation ("memory", "redis", "valkey").
	Backend() string
}

// Entry is the stored record.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

func newEntry(data []byte, now time.Time) Entry {
	return Entry{Data: json.RawMessage(data), Timestamp: now.UnixMilli()}
}

// fresh reports whether e is still within ttl at now.
func (e Entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.Timestamp < ttl.Milliseconds()
}

func encodeEntry(data []byte, now time.Time) ([]byte, error) {
	if !json.Valid(data) {
		return nil, ErrNotJSON
	}
	return json.Marshal(newEntry(data, now))
}

func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(raw, &e)
	return e, err
}
