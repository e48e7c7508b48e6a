package stats

import (
	"github.com/MrSnakeDoc/parley/internal/registry"
)

// Statistic keys published for the service registry.
const (
	KeyRooms     = "chat_rooms"
	KeyOccupants = "chat_occupants"
	KeyUsers     = "chat_users"
	KeyIncoming  = "chat_incoming"
	KeyOutgoing  = "chat_outgoing"
)

// RegisterRegistryStats publishes the registry-wide measurements:
// room, occupant and connected-user gauges plus the message counters.
// Gauges read identically on every node because room state is kept
// convergent cluster-wide; the incoming counter only sees the traffic
// this node handled and is marked partial.
func RegisterRegistryStats(c Collector, reg *registry.Registry) {
	c.Register(Statistic{
		Key:         KeyRooms,
		Name:        "Chat Rooms",
		Kind:        KindCount,
		Description: "Number of rooms across all chat services",
		Unit:        "rooms",
		Sample: func() float64 {
			var n int
			for _, svc := range reg.Services() {
				n += svc.RoomCount()
			}
			return float64(n)
		},
	})
	c.Register(Statistic{
		Key:         KeyOccupants,
		Name:        "Room Occupants",
		Kind:        KindCount,
		Description: "Number of occupants across all rooms",
		Unit:        "occupants",
		Sample: func() float64 {
			var n int
			for _, svc := range reg.Services() {
				n += svc.OccupantCount()
			}
			return float64(n)
		},
	})
	c.Register(Statistic{
		Key:         KeyUsers,
		Name:        "Connected Users",
		Kind:        KindCount,
		Description: "Number of distinct users present in at least one room",
		Unit:        "users",
		Sample: func() float64 {
			var n int
			for _, svc := range reg.Services() {
				n += svc.ConnectedUserCount()
			}
			return float64(n)
		},
	})
	c.Register(Statistic{
		Key:         KeyIncoming,
		Name:        "Incoming Messages",
		Kind:        KindRate,
		Description: "Messages received by chat services on this node",
		Unit:        "messages",
		Partial:     true,
		Sample: func() float64 {
			var n int64
			for _, svc := range reg.Services() {
				n += svc.IncomingMessageCount()
			}
			return float64(n)
		},
	})
	c.Register(Statistic{
		Key:         KeyOutgoing,
		Name:        "Outgoing Messages",
		Kind:        KindRate,
		Description: "Messages delivered to room occupants",
		Unit:        "messages",
		Sample: func() float64 {
			var n int64
			for _, svc := range reg.Services() {
				n += svc.OutgoingMessageCount()
			}
			return float64(n)
		},
	})
}

// UnregisterRegistryStats withdraws every registry statistic.
func UnregisterRegistryStats(c Collector) {
	for _, key := range []string{KeyRooms, KeyOccupants, KeyUsers, KeyIncoming, KeyOutgoing} {
		c.Unregister(key)
	}
}
