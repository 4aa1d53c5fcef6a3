package mw

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/session"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	workspaceKey
)

// SessionResolver looks up the session behind a bearer token.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Session, error)
}

// Authenticate resolves the bearer token, when present, into the request
// context. Unknown or expired tokens leave the request anonymous.
func Authenticate(sessions SessionResolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			s, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) {
					log.Warn("session lookup failed", logger.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, s)))
		})
	}
}

// RequireSession rejects anonymous requests with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Session(r) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="mapmarks"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"You must be logged in."}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Session returns the authenticated session, nil for anonymous requests.
func Session(r *http.Request) *domain.Session {
	s, _ := r.Context().Value(sessionKey).(*domain.Session)
	return s
}

// WithSession is used by tests to inject a session.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}
