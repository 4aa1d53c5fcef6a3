package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

type fakeAuth struct {
	loginBody   string
	loginErr    error
	registered  backend.Registration
	loginCalled int
}

func (f *fakeAuth) Login(ctx context.Context, cr backend.Credentials) ([]byte, error) {
	f.loginCalled++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return []byte(f.loginBody), nil
}

func (f *fakeAuth) Register(ctx context.Context, r backend.Registration) ([]byte, error) {
	f.registered = r
	return []byte(`{"id":1}`), nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "5",
		"exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func stores(t *testing.T) map[string]Store {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(nil),
		"redis":  NewRedisStore(client),
	}
}

func TestLoginPersistsSessionWithJWTExpiry(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			exp := time.Now().Add(time.Hour).Truncate(time.Second)
			tok := signedToken(t, exp)
			api := &fakeAuth{loginBody: `{"token":"` + tok + `","id":5,"name":"Ana","email":"ana@example.com","role":"USER"}`}
			m := NewManager(api, store, 24*time.Hour, logger.Nop())

			s, err := m.Login(context.Background(), backend.Credentials{Email: "ana@example.com", Password: "x"})
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if s.ID != 5 || s.Name != "Ana" || s.Email != "ana@example.com" {
				t.Errorf("Login() = %+v", s)
			}
			if !s.ExpiresAt.Equal(exp) {
				t.Errorf("ExpiresAt = %v, want token exp %v", s.ExpiresAt, exp)
			}

			got, err := m.Resolve(context.Background(), tok)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.ID != 5 {
				t.Errorf("Resolve() = %+v", got)
			}
			var raw map[string]any
			if err := json.Unmarshal(got.Raw, &raw); err != nil || raw["role"] != "USER" {
				t.Errorf("raw backend object not preserved: %s", got.Raw)
			}
		})
	}
}

func TestLoginOpaqueTokenUsesConfiguredTTL(t *testing.T) {
	api := &fakeAuth{loginBody: `{"accessToken":"opaque","user":{"id":"8","name":"Luis"}}`}
	m := NewManager(api, NewMemoryStore(nil), 2*time.Hour, logger.Nop())
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	s, err := m.Login(context.Background(), backend.Credentials{Email: "l@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.ID != 8 || s.Name != "Luis" || s.Token != "opaque" {
		t.Errorf("Login() = %+v", s)
	}
	if want := fixed.Add(2 * time.Hour); !s.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, want)
	}
}

func TestLoginWithoutTokenIsNotPersisted(t *testing.T) {
	store := NewMemoryStore(nil)
	api := &fakeAuth{loginBody: `{"id":5,"name":"Ana"}`}
	m := NewManager(api, store, time.Hour, logger.Nop())

	_, err := m.Login(context.Background(), backend.Credentials{Email: "a@example.com", Password: "x"})
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("Login() error = %v, want unauthorized", err)
	}
	if len(store.sessions) != 0 {
		t.Errorf("store holds %d sessions, want 0", len(store.sessions))
	}
}

func TestLoginExpiredJWTRejected(t *testing.T) {
	tok := signedToken(t, time.Now().Add(-time.Minute))
	m := NewManager(&fakeAuth{loginBody: `{"token":"` + tok + `","id":1}`}, NewMemoryStore(nil), time.Hour, logger.Nop())

	if _, err := m.Login(context.Background(), backend.Credentials{Email: "a", Password: "b"}); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("Login() error = %v, want unauthorized", err)
	}
}

func TestLoginValidation(t *testing.T) {
	api := &fakeAuth{}
	m := NewManager(api, NewMemoryStore(nil), time.Hour, logger.Nop())

	_, err := m.Login(context.Background(), backend.Credentials{Email: " ", Password: ""})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("Login() error = %v, want validation", err)
	}
	if api.loginCalled != 0 {
		t.Error("backend must not be called with empty credentials")
	}
}

func TestLoginBackendErrorPropagates(t *testing.T) {
	backendErr := apperr.Wrap(apperr.KindUnauthorized, "Bad credentials", &backend.APIError{Status: 401})
	m := NewManager(&fakeAuth{loginErr: backendErr}, NewMemoryStore(nil), time.Hour, logger.Nop())

	_, err := m.Login(context.Background(), backend.Credentials{Email: "a", Password: "b"})
	if apperr.MessageOf(err, "") != "Bad credentials" {
		t.Errorf("Login() error = %v", err)
	}
}

func TestRegisterDefaultsCountry(t *testing.T) {
	api := &fakeAuth{}
	m := NewManager(api, NewMemoryStore(nil), time.Hour, logger.Nop())

	if _, err := m.Register(context.Background(), backend.Registration{Name: "A", Email: "a@x", Password: "p"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if api.registered.CountryCode != "ES" {
		t.Errorf("CountryCode = %q, want ES", api.registered.CountryCode)
	}

	_, err := m.Register(context.Background(), backend.Registration{})
	fields := apperr.FieldsOf(err)
	if len(fields) != 3 {
		t.Errorf("FieldsOf() = %v, want name/email/password", fields)
	}
}

func TestLogout(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(&fakeAuth{loginBody: `{"token":"abc","id":1}`}, store, time.Hour, logger.Nop())
			ctx := context.Background()

			if _, err := m.Login(ctx, backend.Credentials{Email: "a", Password: "b"}); err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if err := m.Logout(ctx, "abc"); err != nil {
				t.Fatalf("Logout() error = %v", err)
			}
			if _, err := m.Resolve(ctx, "abc"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Resolve() after logout error = %v, want ErrNotFound", err)
			}
			if err := m.Logout(ctx, "never-issued"); err != nil {
				t.Errorf("Logout() of unknown token error = %v", err)
			}
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	_ = store.Save(ctx, &domain.Session{Token: "a", ID: 1, ExpiresAt: now.Add(time.Minute)})
	_ = store.Save(ctx, &domain.Session{Token: "b", ID: 2, ExpiresAt: now.Add(time.Hour)})

	now = now.Add(2 * time.Minute)
	if _, err := store.Load(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() of expired session error = %v", err)
	}
	if n := store.Purge(); n != 0 {
		t.Errorf("Purge() = %d, expired entry should already be gone", n)
	}
	now = now.Add(time.Hour)
	if n := store.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
}

func TestRedisStoreHashesTokenAndSetsTTL(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	store := NewRedisStore(client)
	err := store.Save(context.Background(), &domain.Session{Token: "secret-token", ID: 1, ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	keys := s.Keys()
	if len(keys) != 1 || keys[0] != KeyPrefixSession+tokenKey("secret-token") {
		t.Fatalf("keys = %v", keys)
	}
	if ttl := s.TTL(keys[0]); ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BearerToken(tt.in); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(&domain.Session{Token: "t", ID: 3})
	if h.Get("Authorization") != "Bearer t" || h.Get("X-User-ID") != "3" {
		t.Errorf("Headers() = %v", h)
	}
}
