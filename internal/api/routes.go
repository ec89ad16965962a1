package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 15 * time.Second

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		// Long-lived streams cannot sit behind the timeout or compression writers
		r.Get("/stream", h.HandleSSE)
		r.Get("/ws", h.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(m.Timeout(requestTimeout))
			r.Use(middleware.Compress(5, "application/json"))

			r.Get("/config", h.GetConfig)
			r.Post("/jsonrpc", h.HandleJSONRPC)

			// Dashboard view model and raw snapshots
			r.Get("/dashboard", h.GetDashboard)
			r.Post("/dashboard/refresh", h.RefreshDashboard)
			r.Get("/preview", h.GetPreview)
			r.Get("/pool", h.GetPool)
			r.Route("/users/{address}", func(r chi.Router) {
				r.Get("/dashboard", h.GetDashboard)
				r.Post("/refresh", h.RefreshDashboard)
				r.Get("/snapshot", h.GetUserSnapshot)
			})
			r.Get("/units/parse", h.ParseUnits)

			// Contract writes
			r.Route("/transactions", func(r chi.Router) {
				r.Post("/build", h.BuildTransaction)
				r.Post("/submit", h.SubmitTransaction)
				r.Get("/{id}", h.GetTransaction)
			})
		})
	})

	return r
}
