package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mapmarks/internal/metrics"
)

func init() { Register(registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	ops := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))
	ops.Get("/infra", handlers.Infra(d))
	ops.Method("GET", "/metrics", metrics.Handler())
}
