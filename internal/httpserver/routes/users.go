package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
	"github.com/MrSnakeDoc/parley/internal/httpserver/handlers"
)

func init() { Register(registerUsers) }

func registerUsers(r chi.Router, d deps.Deps) {
	r.Get("/users/{address}/affiliations", handlers.UserAffiliations(d))
	r.Delete("/users/{address}/affiliations", handlers.UserDeleted(d))
}
