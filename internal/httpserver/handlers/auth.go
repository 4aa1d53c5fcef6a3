package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mapmarks/internal/session"
)

func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cr backend.Credentials
		if err := decodeJSON(w, r, &cr); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		s, err := d.Sessions.Login(r.Context(), cr)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func Register(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg backend.Registration
		if err := decodeJSON(w, r, &reg); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		raw, err := d.Sessions.Register(r.Context(), reg)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		_, _ = w.Write(raw)
	}
}

// Logout forgets the caller's session and discards its workspace drafts.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := session.BearerToken(r.Header.Get("Authorization"))
		if err := d.Sessions.Logout(r.Context(), token); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if ws := mw.CurrentWorkspace(r); ws != nil {
			d.Workspaces.Drop(ws.ID)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := mw.Session(r)
		if s == nil {
			writeError(w, r, d.Logger, apperr.New(apperr.KindUnauthorized, "You must be logged in."))
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
