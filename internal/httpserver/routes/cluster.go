package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
	"github.com/MrSnakeDoc/parley/internal/httpserver/handlers"
)

func init() { Register(registerCluster) }

func registerCluster(r chi.Router, d deps.Deps) {
	r.Get("/cluster", handlers.ClusterInfo(d))
	r.Get("/statistics", handlers.Statistics(d))
}
