package domain

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// Service is a live, independently addressable chat domain bound to
// exactly one subdomain of the server at a time.
//
// Identity: the numeric ID is assigned by the persistence provider and
// never changes for the lifetime of the service, even across subdomain
// renames. The subdomain itself is immutable on the instance; a rename
// replaces the instance with a fresh one carrying the same ID.
type Service struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	id        int64
	subdomain string

	// ─────────────────────────────
	// Mutable state
	// ─────────────────────────────

	mu          sync.RWMutex
	description string
	hidden      bool
	rooms       map[string]*Room
	closed      bool

	shutdownOnce sync.Once
	onShutdown   func()

	// Message traffic counters, sampled by the statistics layer.
	incoming atomic.Int64
	outgoing atomic.Int64
}

// NewService constructs a live service instance. The instance is inert
// until it is registered with the registry.
func NewService(id int64, subdomain, description string, hidden bool) *Service {
	return &Service{
		id:          id,
		subdomain:   subdomain,
		description: description,
		hidden:      hidden,
		rooms:       make(map[string]*Room),
	}
}

// ID returns the provider-assigned identifier.
func (s *Service) ID() int64 { return s.id }

// Subdomain returns the subdomain this instance is bound to.
func (s *Service) Subdomain() string { return s.subdomain }

// Description returns the free-text description.
func (s *Service) Description() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.description
}

// SetDescription mutates the description in place.
func (s *Service) SetDescription(description string) {
	s.mu.Lock()
	s.description = description
	s.mu.Unlock()
}

// Hidden reports whether the service is excluded from visible counts.
func (s *Service) Hidden() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hidden
}

// SetHidden mutates the visibility flag.
func (s *Service) SetHidden(hidden bool) {
	s.mu.Lock()
	s.hidden = hidden
	s.mu.Unlock()
}

// SetOnShutdown installs a hook invoked exactly once when the service is
// shut down, before its rooms are dropped.
func (s *Service) SetOnShutdown(fn func()) {
	s.mu.Lock()
	s.onShutdown = fn
	s.mu.Unlock()
}

// Shutdown drains the service: the shutdown hook runs once and all rooms
// are released. Safe to call multiple times.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		fn := s.onShutdown
		s.closed = true
		s.rooms = make(map[string]*Room)
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// Closed reports whether Shutdown has run.
func (s *Service) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Room returns the room with the given name, or nil if none exists.
func (s *Service) Room(name string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[name]
}

// Rooms returns all rooms sorted by name.
func (s *Service) Rooms() []*Room {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name() < rooms[j].Name() })
	return rooms
}

// CreateRoom creates a room with the given configuration, or returns the
// existing room of that name unchanged.
func (s *Service) CreateRoom(name string, cfg RoomConfig) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[name]; ok {
		return r
	}
	r := NewRoom(name, cfg)
	r.attach(s)
	s.rooms[name] = r
	return r
}

// RemoveRoom drops the room with the given name. No-op if absent.
func (s *Service) RemoveRoom(name string) {
	s.mu.Lock()
	delete(s.rooms, name)
	s.mu.Unlock()
}

// RoomCount returns the number of rooms hosted by this service.
func (s *Service) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// OccupantCount returns the total occupants across all rooms.
func (s *Service) OccupantCount() int {
	total := 0
	for _, r := range s.Rooms() {
		total += r.OccupantCount()
	}
	return total
}

// ConnectedUserCount returns the number of distinct user addresses with
// at least one occupant in any room of this service.
func (s *Service) ConnectedUserCount() int {
	seen := make(map[string]struct{})
	for _, r := range s.Rooms() {
		for _, o := range r.Occupants() {
			seen[o.UserAddress] = struct{}{}
		}
	}
	return len(seen)
}

// CountIncoming records n messages received by rooms of this service.
func (s *Service) CountIncoming(n int64) { s.incoming.Add(n) }

// CountOutgoing records n messages sent to participants of this service.
func (s *Service) CountOutgoing(n int64) { s.outgoing.Add(n) }

// IncomingMessageCount returns the running incoming message total.
func (s *Service) IncomingMessageCount() int64 { return s.incoming.Load() }

// OutgoingMessageCount returns the running outgoing message total.
func (s *Service) OutgoingMessageCount() int64 { return s.outgoing.Load() }

type serviceStatus struct {
	Subdomain   string `json:"subdomain"`
	Description string `json:"description"`
	Hidden      bool   `json:"hidden"`
	Rooms       int    `json:"rooms"`
	Occupants   int    `json:"occupants"`
}

// Handler returns the HTTP surface exposed for this service through the
// component host. It reports a point-in-time status summary.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(serviceStatus{
			Subdomain:   s.Subdomain(),
			Description: s.Description(),
			Hidden:      s.Hidden(),
			Rooms:       s.RoomCount(),
			Occupants:   s.OccupantCount(),
		})
	})
}
