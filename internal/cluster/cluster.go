package cluster

import "context"

// NodeID identifies one member of the cluster.
type NodeID string

// QueryHandler answers one synchronous cluster query addressed to this
// node. The returned payload travels back to the requester; a nil error
// with a nil payload is a valid empty answer.
type QueryHandler func(payload []byte) ([]byte, error)

// EventListener receives membership and invalidation events. Callbacks
// run off the coordinator's event loop, may block in synchronous pulls
// and may execute concurrently with each other and with administrative
// calls into the registry.
type EventListener interface {
	// JoinedCluster fires after the local node has joined an existing
	// cluster.
	JoinedCluster()

	// MemberJoined fires when another node joins the cluster.
	MemberJoined(id NodeID)

	// MemberLeft fires when another node leaves or fails.
	MemberLeft(id NodeID)

	// BecameLeader fires when the local node becomes the designated
	// leader.
	BecameLeader()
}

// Coordinator is the cluster membership facility the registry core
// consumes: leader designation, synchronous request dispatch and
// cluster-wide broadcasts. Timeout and retry policy live behind this
// interface; callers treat "no result" and "timed out" identically.
type Coordinator interface {
	// LocalID returns this node's identifier.
	LocalID() NodeID

	// IsLeader reports whether this node is the designated leader.
	IsLeader() bool

	// LeaderID returns the current leader's identifier, if one is known.
	LeaderID() (NodeID, bool)

	// Peers returns every other alive member.
	Peers() []NodeID

	// SendSync issues a synchronous query to target and blocks until a
	// response arrives or the coordinator's timeout elapses. An empty
	// target addresses the current leader. The bool result is false when
	// no response was obtained for any reason.
	SendSync(ctx context.Context, query string, payload []byte, target NodeID) ([]byte, bool)

	// Broadcast sends a query to every member, discarding all responses.
	Broadcast(ctx context.Context, query string, payload []byte) error

	// Handle installs the handler answering the named query on this node.
	Handle(query string, h QueryHandler)

	// AddListener subscribes to membership events.
	AddListener(l EventListener)
}
