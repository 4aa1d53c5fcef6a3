package mw

import (
	"context"
	"net/http"
	"regexp"

	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
)

const (
	WorkspaceHeader = "X-Workspace-ID"
	WorkspaceCookie = "mapmarks_ws"
)

var workspaceIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// Workspace binds the request to the caller's workspace. The id comes from
// the X-Workspace-ID header or the workspace cookie; a new one is issued
// when neither carries a valid id. The id is echoed in the response header.
func Workspace(m *workspace.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(WorkspaceHeader)
			if id == "" {
				if c, err := r.Cookie(WorkspaceCookie); err == nil {
					id = c.Value
				}
			}
			if !workspaceIDPattern.MatchString(id) {
				id = workspace.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     WorkspaceCookie,
					Value:    id,
					Path:     "/api",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(WorkspaceHeader, id)

			ws := m.Get(id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), workspaceKey, ws)))
		})
	}
}

// CurrentWorkspace returns the workspace bound by the Workspace middleware.
func CurrentWorkspace(r *http.Request) *workspace.Workspace {
	ws, _ := r.Context().Value(workspaceKey).(*workspace.Workspace)
	return ws
}
