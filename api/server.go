/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend
  5. Auth:       Bearer-token verification on everything but login

ROUTE GROUPS:
  /api/auth/*        Login (public)
  /api/attendance/*  Employee clock actions and reads (authenticated)
  /api/admin/*       Employee management, overrides, audit (admin role)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/attendance-engine/auth"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Employee routes
		r.Route("/attendance", func(r chi.Router) {
			r.Use(h.Auth.Middleware)
			r.Get("/today", h.Today)
			r.Post("/clock-in", h.ClockIn)
			r.Post("/clock-out", h.ClockOut)
			r.Post("/break-start", h.BreakStart)
			r.Post("/break-end", h.BreakEnd)
			r.Get("/history", h.History)
			r.Get("/statistics", h.Statistics)
			r.Get("/export", h.ExportMonth)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.Auth.Middleware)
			r.Use(auth.RequireAdmin)
			r.Get("/employees", h.ListEmployees)
			r.Post("/employees", h.CreateEmployee)
			r.Delete("/employees/{id}", h.DeleteEmployee)
			r.Get("/attendance", h.AdminListAttendance)
			r.Put("/attendance/{id}", h.OverrideAttendance)
			r.Get("/statistics", h.AdminStatistics)
			r.Get("/audit", h.AuditTrail)
		})
	})

	return r
}
