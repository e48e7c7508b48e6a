package domain

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/parley/internal/container"
)

// RoomConfig is the mutable configuration of a room. It travels inside
// cluster snapshots, so every field must round-trip through JSON.
type RoomConfig struct {
	Subject      string `json:"subject,omitempty"`
	Description  string `json:"description,omitempty"`
	Persistent   bool   `json:"persistent"`
	MembersOnly  bool   `json:"members_only"`
	LogEnabled   bool   `json:"log_enabled"`
	MaxOccupants int    `json:"max_occupants,omitempty"` // 0 = unlimited
}

// Occupant is one participant's presence in a room.
type Occupant struct {
	Nickname    string
	UserAddress string
	Role        string
	JoinedAt    time.Time

	seat container.Handle // position in the room's arrival order
}

// Room is a chat space owned by exactly one service. The registry core
// only manages its snapshot/merge representation; message routing and
// affiliation rules live elsewhere.
type Room struct {
	name string

	mu        sync.RWMutex
	config    RoomConfig
	occupants map[string]*Occupant // by nickname
	arrival   *container.List[string]
	svc       *Service // owning service, nil until attached
}

// NewRoom constructs a room that is not yet owned by any service;
// Service.CreateRoom attaches it.
func NewRoom(name string, cfg RoomConfig) *Room {
	return &Room{
		name:      name,
		config:    cfg,
		occupants: make(map[string]*Occupant),
		arrival:   container.New[string](),
	}
}

func (r *Room) attach(svc *Service) {
	r.mu.Lock()
	r.svc = svc
	r.mu.Unlock()
}

// Name returns the room name, unique within its service.
func (r *Room) Name() string { return r.name }

// Config returns a copy of the current configuration.
func (r *Room) Config() RoomConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// UpdateConfig replaces the room configuration. The merge path uses this
// when the peer snapshot wins over local state.
func (r *Room) UpdateConfig(cfg RoomConfig) {
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()
}

// AddOccupant materializes one participant's presence in the room.
// When sendPresence is set, every participant already in the room is
// notified of the arrival.
//
// Returns ErrNicknameTaken if the nickname is already present.
func (r *Room) AddOccupant(nickname, userAddress, role string, sendPresence bool) (*Occupant, error) {
	r.mu.Lock()
	if _, ok := r.occupants[nickname]; ok {
		r.mu.Unlock()
		return nil, ErrNicknameTaken
	}

	o := &Occupant{
		Nickname:    nickname,
		UserAddress: userAddress,
		Role:        role,
		JoinedAt:    time.Now(),
	}
	o.seat = r.arrival.PushBack(nickname)
	notified := len(r.occupants)
	r.occupants[nickname] = o
	svc := r.svc
	r.mu.Unlock()

	if sendPresence && svc != nil && notified > 0 {
		// One presence broadcast per participant already present.
		svc.CountOutgoing(int64(notified))
	}
	return o, nil
}

// RemoveOccupant drops the occupant with the given nickname. Reports
// whether one was present.
func (r *Room) RemoveOccupant(nickname string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.occupants[nickname]
	if !ok {
		return false
	}
	r.arrival.Remove(o.seat)
	delete(r.occupants, nickname)
	return true
}

// Occupant returns the occupant with the given nickname, or nil.
func (r *Room) Occupant(nickname string) *Occupant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.occupants[nickname]
}

// Occupants returns the occupants in arrival order.
func (r *Room) Occupants() []*Occupant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Occupant, 0, len(r.occupants))
	for _, nickname := range r.arrival.Values() {
		if o, ok := r.occupants[nickname]; ok {
			out = append(out, o)
		}
	}
	return out
}

// OccupantCount returns the number of occupants in the room.
func (r *Room) OccupantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.occupants)
}
