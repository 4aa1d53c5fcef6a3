package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
)

func init() { RegisterAPI(registerWizard, mw.RequireSession) }

func registerWizard(r chi.Router, d deps.Deps) {
	r.Route("/wizard", func(r chi.Router) {
		r.Get("/", handlers.GetWizard(d))
		r.Post("/", handlers.StartWizard(d))
		r.Patch("/", handlers.PatchWizard(d))
		r.Delete("/", handlers.DiscardWizard(d))
		r.Post("/images", handlers.AttachWizardImages(d))
		r.Delete("/images", handlers.ClearWizardImages(d))
		r.Post("/next", handlers.NextStep(d))
		r.Post("/back", handlers.PreviousStep(d))
		r.Post("/submit", handlers.SubmitWizard(d))
	})
}
