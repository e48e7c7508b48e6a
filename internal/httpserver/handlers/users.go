package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
	"github.com/MrSnakeDoc/parley/internal/logger"
)

// UserDeleted handles a user-deletion notification from the user system:
// the user's stored room affiliations are dropped across all services.
// Occupants the user still has in materialized rooms are untouched.
func UserDeleted(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := url.PathUnescape(chi.URLParam(r, "address"))
		if err != nil || address == "" {
			writeError(w, http.StatusBadRequest, "invalid user address")
			return
		}

		if err := d.Registry.UserDeleting(r.Context(), address); err != nil {
			d.Logger.Error("affiliation cleanup failed",
				logger.String("user", address),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to remove affiliations")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UserAffiliations lists a user's stored affiliations keyed by
// "<subdomain>/<room>".
func UserAffiliations(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, err := url.PathUnescape(chi.URLParam(r, "address"))
		if err != nil || address == "" {
			writeError(w, http.StatusBadRequest, "invalid user address")
			return
		}

		affiliations, err := d.Store.Affiliations(r.Context(), address)
		if err != nil {
			d.Logger.Error("affiliation lookup failed",
				logger.String("user", address),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load affiliations")
			return
		}
		writeJSON(w, http.StatusOK, affiliations)
	}
}
