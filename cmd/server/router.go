package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/avelasco/taskboard-api/internal/api"
	apiMiddleware "github.com/avelasco/taskboard-api/internal/api/middleware"
	"github.com/avelasco/taskboard-api/internal/api/shared"
)

// setupRouter configures the application router with all routes and
// middleware. Rate limiting runs after authentication on protected
// routes so the budget follows the authenticated user rather than the
// client address.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceID)

	authHandler := api.NewAuthHandler(app.userStore, app.jwtService, app.passwordVerifier)
	taskHandler := api.NewTaskHandler(app.taskStore)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	rateLimitMiddleware := apiMiddleware.NewRateLimitMiddleware(app.limiter)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public, limited by client address)
		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware.Limit)
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		// Protected routes, limited by authenticated user
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Get("/tasks", taskHandler.List)
			r.Post("/tasks", taskHandler.Create)
			r.Put("/tasks/{id}", taskHandler.Update)
			r.Delete("/tasks/{id}", taskHandler.Delete)
		})
	})

	// Realtime endpoint. The hub runs its own auth handshake over the
	// socket, so no HTTP middleware applies here.
	r.Get("/ws", app.hub.HandleWS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "database": "ok"}
		code := http.StatusOK
		if err := app.db.PingContext(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
		shared.RespondWithJSON(w, r, code, status)
	})

	return r
}
