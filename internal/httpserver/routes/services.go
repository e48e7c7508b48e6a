package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
	"github.com/MrSnakeDoc/parley/internal/httpserver/handlers"
)

func init() { Register(registerServices) }

func registerServices(r chi.Router, d deps.Deps) {
	r.Route("/services", func(r chi.Router) {
		r.Get("/", handlers.ListServices(d))
		r.Post("/", handlers.CreateService(d))
		r.Route("/{subdomain}", func(r chi.Router) {
			r.Get("/", handlers.GetService(d))
			r.Put("/", handlers.UpdateService(d))
			r.Delete("/", handlers.DeleteService(d))
			r.Post("/rooms", handlers.CreateRoom(d))
			r.Post("/rooms/{room}/occupants", handlers.JoinRoom(d))
			r.Delete("/rooms/{room}/occupants/{nickname}", handlers.LeaveRoom(d))
		})
	})
}
