package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/handlers"
)

// Map routes stay open to anonymous callers: clicks without a session are
// answered with placed=false instead of 401.
func init() { RegisterAPI(registerMap) }

func registerMap(r chi.Router, d deps.Deps) {
	r.Route("/map", func(r chi.Router) {
		r.Get("/", handlers.GetMap(d))
		r.Post("/click", handlers.ClickMap(d))
		r.Post("/locate", handlers.LocateMap(d))
		r.Post("/drag", handlers.DragMarker(d))
		r.Post("/confirm", handlers.ConfirmPlacement(d))
		r.Post("/cancel", handlers.CancelPlacement(d))
		r.Post("/search", handlers.SearchMap(d))
		r.Post("/type", handlers.TypeMap(d))
	})
	r.Route("/geocode", func(r chi.Router) {
		r.Get("/search", handlers.GeocodeSearch(d))
		r.Get("/reverse", handlers.GeocodeReverse(d))
		r.Get("/suggest", handlers.GeocodeSuggest(d))
	})
}
