package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
)

func init() { RegisterAPI(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Route("/bookmarks", func(r chi.Router) {
		r.Get("/", handlers.ListBookmarks(d))
		r.Get("/search", handlers.SearchBookmarks(d))
		r.Get("/{id}", handlers.GetBookmark(d))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireSession)
			r.Post("/", handlers.CreateBookmark(d))
			r.Put("/{id}", handlers.UpdateBookmark(d))
			r.Delete("/{id}", handlers.DeleteBookmark(d))
		})
	})
	r.Get("/markers", handlers.Markers(d))
	r.Get("/images/{id}", handlers.Image(d))
}
