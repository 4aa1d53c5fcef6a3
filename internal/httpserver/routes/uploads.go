package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
)

func init() { RegisterAPI(registerUploads, mw.RequireSession) }

func registerUploads(r chi.Router, d deps.Deps) {
	r.Route("/uploads", func(r chi.Router) {
		r.Post("/images", handlers.UploadImages(d))
		r.Post("/video", handlers.UploadVideo(d))
	})
}
