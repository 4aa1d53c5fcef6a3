package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerReference) }

func registerReference(r chi.Router, d deps.Deps) {
	r.Get("/categories", handlers.Categories(d))
	r.Get("/tags", handlers.Tags(d))
	r.Get("/legend", handlers.Legend(d))
	r.Get("/users/{id}", handlers.User(d))

	r.Route("/filters", func(r chi.Router) {
		r.Get("/", handlers.GetFilter(d))
		r.Post("/", handlers.ToggleCategory(d))
		r.Put("/", handlers.SetTags(d))
		r.Delete("/", handlers.ClearFilter(d))
	})
}
