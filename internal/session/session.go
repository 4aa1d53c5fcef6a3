// Package session wraps the backend auth endpoints and keeps the resulting
// session object so later calls can be authorized on the user's behalf.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultCountryCode is sent on registration when none is given.
const DefaultCountryCode = "ES"

// AuthAPI is the subset of the backend client used here.
type AuthAPI interface {
	Login(ctx context.Context, cr backend.Credentials) ([]byte, error)
	Register(ctx context.Context, r backend.Registration) ([]byte, error)
}

type Manager struct {
	api   AuthAPI
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   logger.Logger
}

// NewManager builds a manager. ttl applies to tokens that carry no exp claim.
func NewManager(api AuthAPI, store Store, ttl time.Duration, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{api: api, store: store, ttl: ttl, now: time.Now, log: log}
}

// Login authenticates against the backend and persists the session when the
// response carries a token.
func (m *Manager) Login(ctx context.Context, cr backend.Credentials) (*domain.Session, error) {
	if strings.TrimSpace(cr.Email) == "" || cr.Password == "" {
		return nil, apperr.Validation(map[string]string{
			"credentials": "Email and password are required.",
		})
	}

	raw, err := m.api.Login(ctx, cr)
	if err != nil {
		return nil, err
	}

	s, err := parseLoginResponse(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBackend, "Unexpected login response", err)
	}
	if s.Token == "" {
		m.log.Warn("login response carried no token, session not persisted")
		return nil, apperr.New(apperr.KindUnauthorized, "Login failed")
	}

	s.ExpiresAt = m.expiry(s.Token)
	if !s.ExpiresAt.After(m.now()) {
		return nil, apperr.New(apperr.KindUnauthorized, "Session token already expired")
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.log.Info("user logged in", logger.Int64("user_id", s.ID))
	return s, nil
}

// Register creates an account. CountryCode defaults to ES.
func (m *Manager) Register(ctx context.Context, r backend.Registration) (json.RawMessage, error) {
	fields := map[string]string{}
	if strings.TrimSpace(r.Name) == "" {
		fields["name"] = "Name is required."
	}
	if strings.TrimSpace(r.Email) == "" {
		fields["email"] = "Email is required."
	}
	if r.Password == "" {
		fields["password"] = "Password is required."
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}
	if r.CountryCode == "" {
		r.CountryCode = DefaultCountryCode
	}
	return m.api.Register(ctx, r)
}

// Logout forgets the session. Unknown tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.Delete(ctx, token)
}

// Resolve returns the live session for a bearer token.
func (m *Manager) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s, err := m.store.Load(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return s, nil
}

// Headers returns the headers attached to authorized backend calls:
// Authorization: Bearer <token> and X-User-ID: <id>.
func Headers(s *domain.Session) http.Header {
	return backend.AuthHeaders(s)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// expiry reads exp from a JWT without verifying it; the backend owns the
// signing key. Opaque tokens get the configured ttl.
func (m *Manager) expiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return m.now().Add(m.ttl)
}

// parseLoginResponse accepts {token,id,name,email,...} optionally with the
// user fields nested under "user", and accessToken as an alias of token.
func parseLoginResponse(raw []byte) (*domain.Session, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	s := &domain.Session{Raw: json.RawMessage(raw)}
	s.Token = stringField(body, "token", "accessToken", "jwt")

	fields := body
	if nested, ok := body["user"]; ok {
		var user map[string]json.RawMessage
		if err := json.Unmarshal(nested, &user); err == nil {
			fields = user
		}
	}
	s.Name = stringField(fields, "name", "username")
	s.Email = stringField(fields, "email")
	if id := stringField(fields, "id", "userId"); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", id)
		}
		s.ID = n
	}
	return s, nil
}

// stringField returns the first present key as a string; numbers are
// rendered without quotes.
func stringField(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}
