package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live session matches a token.
var ErrNotFound = errors.New("session not found")

// KeyPrefixSession namespaces session keys in Redis.
const KeyPrefixSession = "mapmarks:session:"

// Store persists sessions by bearer token. Expired sessions are not returned.
type Store interface {
	Save(ctx context.Context, s *domain.Session) error
	Load(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

// tokenKey hashes the token so raw credentials never appear in key names.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ─────────────────────────────────────────────────────────────────
// Redis
// ─────────────────────────────────────────────────────────────────

type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (r *RedisStore) key(token string) string { return KeyPrefixSession + tokenKey(token) }

func (r *RedisStore) Save(ctx context.Context, s *domain.Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired at %s", s.ExpiresAt.Format(time.RFC3339))
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, token string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if !s.ExpiresAt.IsZero() && !r.now().Before(s.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Memory
// ─────────────────────────────────────────────────────────────────

// MemoryStore is used when no Redis is configured. Sessions do not survive restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	now      func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{sessions: make(map[string]domain.Session), now: now}
}

func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	if !s.ExpiresAt.After(m.now()) {
		return fmt.Errorf("session already expired at %s", s.ExpiresAt.Format(time.RFC3339))
	}
	m.mu.Lock()
	m.sessions[tokenKey(s.Token)] = *s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, token string) (*domain.Session, error) {
	key := tokenKey(token)
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, key)
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, tokenKey(token))
	m.mu.Unlock()
	return nil
}

// Purge drops expired sessions and returns how many were removed.
func (m *MemoryStore) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, k)
			n++
		}
	}
	return n
}
