package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

// SearchBookmarks looks bookmarks up by title. An empty title lists everything.
func SearchBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title := strings.TrimSpace(r.URL.Query().Get("title"))
		if title == "" {
			title = strings.TrimSpace(r.URL.Query().Get("q"))
		}

		if title == "" {
			d.Logger.Debug("empty bookmark search, listing all")
			all, err := d.Catalog.AllBookmarks(r.Context())
			if err != nil {
				writeError(w, r, d.Logger, err)
				return
			}
			writeJSON(w, http.StatusOK, cardViews(all, viewOptions(d, r)))
			return
		}

		found, err := d.Catalog.SearchBookmarks(r.Context(), title)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		d.Logger.Info("bookmark search",
			logger.String("title", title),
			logger.Int("results", len(found)))
		writeJSON(w, http.StatusOK, cardViews(found, viewOptions(d, r)))
	}
}
