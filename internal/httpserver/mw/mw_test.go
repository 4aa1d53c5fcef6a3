package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/session"
	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
		wantCreds  bool
	}{
		{"no origin header", []string{"*"}, "", false, http.StatusOK, "", false},
		{"wildcard", []string{"*"}, "https://app.example", false, http.StatusOK, "*", false},
		{"explicit", []string{"https://app.example/"}, "https://app.example", false, http.StatusOK, "https://app.example", true},
		{"explicit preflight", []string{"https://app.example"}, "https://app.example", true, http.StatusNoContent, "https://app.example", true},
		{"unknown preflight", []string{"https://app.example"}, "https://evil.example", true, http.StatusForbidden, "", false},
		{"unknown simple", []string{"https://app.example"}, "https://evil.example", false, http.StatusOK, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/api/bookmarks", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.origins)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v", got)
			}
		})
	}
}

func TestWorkspaceBinding(t *testing.T) {
	m := workspace.NewManager(workspace.Options{})
	var seen *workspace.Workspace
	h := Workspace(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CurrentWorkspace(r)
	}))

	tests := []struct {
		name      string
		header    string
		cookie    string
		wantID    string
		wantIssue bool
	}{
		{"header", "ws-test-0001", "", "ws-test-0001", false},
		{"cookie", "", "ws-test-0002", "ws-test-0002", false},
		{"invalid header", "../etc", "", "", true},
		{"none", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/filters", nil)
			if tt.header != "" {
				req.Header.Set(WorkspaceHeader, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: WorkspaceCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(WorkspaceHeader)
			if tt.wantID != "" && got != tt.wantID {
				t.Errorf("id = %q, want %q", got, tt.wantID)
			}
			issued := rec.Header().Get("Set-Cookie") != ""
			if issued != tt.wantIssue {
				t.Errorf("cookie issued = %v, want %v", issued, tt.wantIssue)
			}
			if seen == nil || seen != m.Get(got) {
				t.Error("handler did not see the bound workspace")
			}
		})
	}
}

type fakeResolver map[string]*domain.Session

func (f fakeResolver) Resolve(_ context.Context, token string) (*domain.Session, error) {
	if s, ok := f[token]; ok {
		return s, nil
	}
	return nil, session.ErrNotFound
}

func TestAuthenticate(t *testing.T) {
	ana := &domain.Session{Token: "tok", ID: 5, Name: "Ana"}
	resolver := fakeResolver{"tok": ana}

	tests := []struct {
		name   string
		header string
		want   *domain.Session
	}{
		{"bearer", "Bearer tok", ana},
		{"unknown token", "Bearer nope", nil},
		{"no header", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.Session
			h := Authenticate(resolver, logger.Nop())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = Session(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("Session() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireSession(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/wizard", nil))
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("anonymous = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/wizard", nil)
	req = req.WithContext(WithSession(req.Context(), &domain.Session{ID: 1}))
	rec = httptest.NewRecorder()
	RequireSession(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with session = %d", rec.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 1})(okHandler)

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call("192.0.2.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i+1, rec.Code)
		}
	}
	rec := call("192.0.2.1")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("over burst = %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := call("192.0.2.2"); rec.Code != http.StatusOK {
		t.Errorf("other ip = %d", rec.Code)
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, false, logger.Nop())(okHandler)
	for ip, want := range map[string]int{"10.1.2.3": http.StatusOK, "192.0.2.1": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/infra", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s = %d, want %d", ip, rec.Code, want)
		}
	}
}
