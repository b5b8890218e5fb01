// Package server wires the HTTP handlers into a chi router.
package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes configures the application routes with request logging and
// panic recovery: health check, WebSocket endpoint, and demo page.
func SetupRoutes(hub *Hub, router *Router) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.Get("/ws", NewWebSocketHandler(hub, router))
	r.Get("/demo", DemoPageHandler)
	return r
}
