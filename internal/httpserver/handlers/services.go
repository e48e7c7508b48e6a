package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/parley/internal/domain"
	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
	"github.com/MrSnakeDoc/parley/internal/logger"
)

type serviceSummary struct {
	ID          int64  `json:"id"`
	Subdomain   string `json:"subdomain"`
	Description string `json:"description,omitempty"`
	Hidden      bool   `json:"hidden"`
	Rooms       int    `json:"rooms"`
	Occupants   int    `json:"occupants"`
}

type serviceDetail struct {
	serviceSummary
	RoomList []roomView `json:"room_list"`
}

type roomView struct {
	Name      string            `json:"name"`
	Config    domain.RoomConfig `json:"config"`
	Occupants []occupantView    `json:"occupants,omitempty"`
}

type occupantView struct {
	Nickname    string    `json:"nickname"`
	UserAddress string    `json:"user_address"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

type serviceRequest struct {
	Subdomain   string `json:"subdomain"`
	Description string `json:"description"`
	Hidden      bool   `json:"hidden"`
}

func summarize(svc *domain.Service) serviceSummary {
	return serviceSummary{
		ID:          svc.ID(),
		Subdomain:   svc.Subdomain(),
		Description: svc.Description(),
		Hidden:      svc.Hidden(),
		Rooms:       svc.RoomCount(),
		Occupants:   svc.OccupantCount(),
	}
}

// ListServices returns every registered service. Hidden services are
// excluded unless include_hidden=true.
func ListServices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeHidden := r.URL.Query().Get("include_hidden") == "true"

		var out []serviceSummary
		for _, svc := range d.Registry.Services() {
			if svc.Hidden() && !includeHidden {
				continue
			}
			out = append(out, summarize(svc))
		}
		if out == nil {
			out = []serviceSummary{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateService persists and registers a new service, then announces it
// to the rest of the cluster.
func CreateService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Subdomain == "" {
			writeError(w, http.StatusBadRequest, "subdomain is required")
			return
		}

		svc, err := d.Registry.Create(r.Context(), req.Subdomain, req.Description, req.Hidden)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyRegistered) {
				writeError(w, http.StatusConflict, "subdomain already registered")
				return
			}
			d.Logger.Error("service create failed",
				logger.String("subdomain", req.Subdomain),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create service")
			return
		}

		d.Broadcaster.ServiceUpdated(r.Context(), req.Subdomain)
		writeJSON(w, http.StatusCreated, summarize(svc))
	}
}

// GetService returns one service with its full room list.
func GetService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := d.Registry.ServiceBySubdomain(chi.URLParam(r, "subdomain"))
		if svc == nil {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}

		detail := serviceDetail{serviceSummary: summarize(svc), RoomList: []roomView{}}
		for _, room := range svc.Rooms() {
			view := roomView{Name: room.Name(), Config: room.Config()}
			for _, occ := range room.Occupants() {
				view.Occupants = append(view.Occupants, occupantView{
					Nickname:    occ.Nickname,
					UserAddress: occ.UserAddress,
					Role:        occ.Role,
					JoinedAt:    occ.JoinedAt,
				})
			}
			detail.RoomList = append(detail.RoomList, view)
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// UpdateService changes a service's subdomain and/or description and
// announces the change. On a rename both the old and new subdomains are
// announced so peers drop the stale binding.
func UpdateService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := chi.URLParam(r, "subdomain")

		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Subdomain == "" {
			req.Subdomain = current
		}

		err := d.Registry.UpdateBySubdomain(r.Context(), current, req.Subdomain, req.Description)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "service not found")
				return
			}
			d.Logger.Error("service update failed",
				logger.String("subdomain", current),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update service")
			return
		}

		if req.Subdomain != current {
			d.Broadcaster.ServiceUpdated(r.Context(), current)
		}
		d.Broadcaster.ServiceUpdated(r.Context(), req.Subdomain)

		svc := d.Registry.ServiceBySubdomain(req.Subdomain)
		if svc == nil {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		writeJSON(w, http.StatusOK, summarize(svc))
	}
}

// DeleteService unregisters and deletes a service, then announces the
// removal.
func DeleteService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subdomain := chi.URLParam(r, "subdomain")

		err := d.Registry.RemoveBySubdomain(r.Context(), subdomain)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "service not found")
				return
			}
			d.Logger.Error("service delete failed",
				logger.String("subdomain", subdomain),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to delete service")
			return
		}

		d.Broadcaster.ServiceUpdated(r.Context(), subdomain)
		w.WriteHeader(http.StatusNoContent)
	}
}
