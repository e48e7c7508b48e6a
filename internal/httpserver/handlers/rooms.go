package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/parley/internal/domain"
	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
	"github.com/MrSnakeDoc/parley/internal/logger"
)

type roomRequest struct {
	Name   string            `json:"name"`
	Config domain.RoomConfig `json:"config"`
}

type occupantRequest struct {
	Nickname    string `json:"nickname"`
	UserAddress string `json:"user_address"`
	Role        string `json:"role"`
	Affiliation string `json:"affiliation,omitempty"`
}

// CreateRoom creates a room in the named service, or returns the
// existing one unchanged.
func CreateRoom(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := d.Registry.ServiceBySubdomain(chi.URLParam(r, "subdomain"))
		if svc == nil {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}

		var req roomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "room name is required")
			return
		}

		room := svc.CreateRoom(req.Name, req.Config)
		writeJSON(w, http.StatusCreated, roomView{Name: room.Name(), Config: room.Config()})
	}
}

// JoinRoom adds an occupant to a room, notifying the participants
// already present. The message is counted as traffic handled by this
// node. An optional affiliation is persisted alongside.
func JoinRoom(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := d.Registry.ServiceBySubdomain(chi.URLParam(r, "subdomain"))
		if svc == nil {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		room := svc.Room(chi.URLParam(r, "room"))
		if room == nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}

		var req occupantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Nickname == "" || req.UserAddress == "" {
			writeError(w, http.StatusBadRequest, "nickname and user_address are required")
			return
		}
		if req.Role == "" {
			req.Role = "participant"
		}

		svc.CountIncoming(1)
		occ, err := room.AddOccupant(req.Nickname, req.UserAddress, req.Role, true)
		if err != nil {
			if errors.Is(err, domain.ErrNicknameTaken) {
				writeError(w, http.StatusConflict, "nickname already in use")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to join room")
			return
		}

		if req.Affiliation != "" && d.Store != nil {
			if err := d.Store.SaveAffiliation(r.Context(), req.UserAddress, svc.Subdomain(), room.Name(), req.Affiliation); err != nil {
				d.Logger.Warn("failed to persist affiliation",
					logger.String("user", req.UserAddress),
					logger.String("room", room.Name()),
					logger.Error(err))
			}
		}

		writeJSON(w, http.StatusCreated, occupantView{
			Nickname:    occ.Nickname,
			UserAddress: occ.UserAddress,
			Role:        occ.Role,
			JoinedAt:    occ.JoinedAt,
		})
	}
}

// LeaveRoom removes an occupant by nickname.
func LeaveRoom(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := d.Registry.ServiceBySubdomain(chi.URLParam(r, "subdomain"))
		if svc == nil {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		room := svc.Room(chi.URLParam(r, "room"))
		if room == nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}

		if !room.RemoveOccupant(chi.URLParam(r, "nickname")) {
			writeError(w, http.StatusNotFound, "occupant not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
