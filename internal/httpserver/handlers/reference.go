package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/presentation"
)

func Categories(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := d.Catalog.Categories(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

func Tags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := d.Catalog.Tags(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

// User returns a public profile, or the placeholder when the backend
// cannot resolve it.
func User(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, d.Logger, apperr.New(apperr.KindNotFound, "User not found."))
			return
		}
		u, err := d.Catalog.User(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// Legend returns the category colors and tag icons used by the map.
func Legend(d deps.Deps) http.HandlerFunc {
	style := d.Style
	if style == nil {
		style = presentation.NewStyle(presentation.File{})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			cats []domain.Category
			tags []domain.Tag
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() (err error) {
			cats, err = d.Catalog.Categories(ctx)
			return err
		})
		g.Go(func() (err error) {
			tags, err = d.Catalog.Tags(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, style.Legend(cats, tags))
	}
}
