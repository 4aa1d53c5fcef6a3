package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

// Image streams a stored image from the backend.
func Image(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		body, contentType, err := d.Backend.Image(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		defer func() { _ = body.Close() }()

		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			d.Logger.Debug("image stream interrupted", logger.String("image_id", id), logger.Error(err))
		}
	}
}
