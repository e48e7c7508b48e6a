package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/parley/internal/domain"
)

// Query names understood by every parley node.
const (
	// QueryFullServices asks a node (normally the leader) for a snapshot
	// of every service it knows, with rooms and pending arrivals.
	QueryFullServices = "parley.services.full"

	// QueryNewMemberRooms asks one specific node for the rooms it hosts
	// itself, without enumerating services.
	QueryNewMemberRooms = "parley.rooms.new-member"

	// QueryServiceUpdated tells every node that a service's configuration
	// changed and cached views of it must be refreshed.
	QueryServiceUpdated = "parley.service.updated"
)

// ServiceInfo is the transfer shape of one service inside a full cluster
// snapshot. It has no lifecycle beyond the single merge that consumes it.
type ServiceInfo struct {
	Subdomain   string         `json:"subdomain"`
	Description string         `json:"description"`
	Hidden      bool           `json:"hidden"`
	Rooms       []RoomSnapshot `json:"rooms,omitempty"`
}

// RoomSnapshot is the transfer shape of one room: its configuration plus
// the occupant arrivals a receiving node must replay to materialize
// remote presence locally.
type RoomSnapshot struct {
	Name      string                 `json:"name"`
	Subdomain string                 `json:"subdomain"`
	Config    domain.RoomConfig      `json:"config"`
	Occupants []OccupantArrival      `json:"occupants,omitempty"`
}

// OccupantArrival is a replayable unit of work that materializes one
// participant's presence in a room. SendPresence controls whether
// existing participants are notified; the merge path forces it on.
type OccupantArrival struct {
	Room         string `json:"room"`
	Subdomain    string `json:"subdomain"`
	Nickname     string `json:"nickname"`
	UserAddress  string `json:"user_address"`
	Role         string `json:"role"`
	SendPresence bool   `json:"send_presence"`
}

// ServiceUpdate names the service whose configuration changed.
type ServiceUpdate struct {
	Subdomain string `json:"subdomain"`
}

// EncodeServiceInfos marshals a full snapshot response.
func EncodeServiceInfos(infos []ServiceInfo) ([]byte, error) {
	data, err := json.Marshal(infos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode service snapshot: %w", err)
	}
	return data, nil
}

// DecodeServiceInfos unmarshals a full snapshot response.
func DecodeServiceInfos(data []byte) ([]ServiceInfo, error) {
	var infos []ServiceInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, fmt.Errorf("failed to decode service snapshot: %w", err)
	}
	return infos, nil
}

// EncodeRoomSnapshots marshals a new-member rooms response.
func EncodeRoomSnapshots(rooms []RoomSnapshot) ([]byte, error) {
	data, err := json.Marshal(rooms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode room snapshot: %w", err)
	}
	return data, nil
}

// DecodeRoomSnapshots unmarshals a new-member rooms response.
func DecodeRoomSnapshots(data []byte) ([]RoomSnapshot, error) {
	var rooms []RoomSnapshot
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode room snapshot: %w", err)
	}
	return rooms, nil
}

// EncodeServiceUpdate marshals a configuration-changed broadcast.
func EncodeServiceUpdate(subdomain string) ([]byte, error) {
	data, err := json.Marshal(ServiceUpdate{Subdomain: subdomain})
	if err != nil {
		return nil, fmt.Errorf("failed to encode service update: %w", err)
	}
	return data, nil
}

// DecodeServiceUpdate unmarshals a configuration-changed broadcast.
func DecodeServiceUpdate(data []byte) (ServiceUpdate, error) {
	var u ServiceUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return u, fmt.Errorf("failed to decode service update: %w", err)
	}
	return u, nil
}
