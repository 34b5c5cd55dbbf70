package routes

import (
	"gruppetto/internal/api"
	"gruppetto/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterAPIRoutes registers all API v1 routes and handlers
// This keeps API route registration separate from the main router setup
func RegisterAPIRoutes(r chi.Router, deps *api.Dependencies) {

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.AuthMiddleware(deps.Cfg.JWTSecret)) // global: all routes must be authenticated

		v1.Route("/accounts", func(accounts chi.Router) {
			accounts.Post("/", api.CreateAccountHandler(deps))
			accounts.Get("/", api.ListAccountsHandler(deps))
			accounts.Delete("/{id}", api.DeleteAccountHandler(deps))
			accounts.Post("/{id}/sync", api.StartSyncHandler(deps))
			accounts.Post("/{id}/sync/stop", api.StopSyncHandler(deps))
		})

		v1.Get("/sessions/{id}/logs", api.SessionLogsHandler(deps))

		v1.Post("/admin/reset-stuck", api.ResetStuckHandler(deps))
	})
}
