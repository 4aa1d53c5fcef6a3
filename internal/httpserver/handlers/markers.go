package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
)

// Markers returns the filtered bookmarks that have a location, as map markers.
func Markers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := d.Catalog.AllBookmarks(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		opts := viewOptions(d, r)
		list := domain.OnlyOnMap(filtered(r, all))
		out := make([]domain.MarkerView, 0, len(list))
		for _, b := range list {
			if m, ok := domain.NewMarkerView(b, opts); ok {
				out = append(out, m)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
