package cluster

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/parley/internal/logger"
	"github.com/hashicorp/serf/serf"
)

// SerfConfig configures the serf-backed coordinator.
type SerfConfig struct {
	NodeName         string        // unique node name within the cluster
	BindAddr         string        // gossip bind address (ex: "0.0.0.0")
	BindPort         int           // gossip bind port (ex: 7946)
	Seeds            []string      // existing members to join, empty = standalone
	SyncTimeout      time.Duration // timeout for synchronous queries
	BroadcastTimeout time.Duration // timeout for cluster-wide broadcasts
}

// SerfCoordinator implements Coordinator on top of hashicorp/serf:
// gossip membership for join/leave events, serf queries for synchronous
// request dispatch and for fire-and-forget broadcasts.
//
// Leader designation is deterministic without coordination state: the
// alive member with the lexicographically smallest name. Every node
// computes the same answer from its own membership view.
type SerfCoordinator struct {
	cfg    SerfConfig
	logger logger.Logger

	serf    *serf.Serf
	eventCh chan serf.Event
	stopCh  chan struct{}

	mu        sync.RWMutex
	handlers  map[string]QueryHandler
	listeners []EventListener
	leader    NodeID
}

// NewSerfCoordinator creates the coordinator. It is inert until Start.
func NewSerfCoordinator(cfg SerfConfig, log logger.Logger) *SerfCoordinator {
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 10 * time.Second
	}
	if cfg.BroadcastTimeout <= 0 {
		cfg.BroadcastTimeout = 5 * time.Second
	}
	return &SerfCoordinator{
		cfg:      cfg,
		logger:   log,
		eventCh:  make(chan serf.Event, 256),
		stopCh:   make(chan struct{}),
		handlers: make(map[string]QueryHandler),
	}
}

// Start creates the serf instance, begins consuming cluster events and
// joins the configured seed members. Listeners receive JoinedCluster
// only when an existing cluster was actually contacted.
func (c *SerfCoordinator) Start() error {
	conf := serf.DefaultConfig()
	conf.NodeName = c.cfg.NodeName
	conf.MemberlistConfig.BindAddr = c.cfg.BindAddr
	conf.MemberlistConfig.BindPort = c.cfg.BindPort
	conf.EventCh = c.eventCh
	conf.LogOutput = io.Discard
	conf.MemberlistConfig.LogOutput = io.Discard
	// Full service snapshots are larger than serf's conservative
	// defaults allow.
	conf.QuerySizeLimit = 16 * 1024
	conf.QueryResponseSizeLimit = 64 * 1024

	s, err := serf.Create(conf)
	if err != nil {
		return fmt.Errorf("failed to create serf node: %w", err)
	}
	c.serf = s

	go c.eventLoop()
	c.recomputeLeader()

	if len(c.cfg.Seeds) == 0 {
		c.logger.Info("no cluster seeds configured, starting standalone",
			logger.String("node", c.cfg.NodeName))
		return nil
	}

	contacted, err := s.Join(c.cfg.Seeds, true)
	if err != nil && contacted == 0 {
		// Unreachable seeds are not fatal; the node serves local state
		// until the next join attempt.
		c.logger.Warn("failed to contact any cluster seed",
			logger.Int("seeds", len(c.cfg.Seeds)),
			logger.Error(err))
		return nil
	}

	c.logger.Info("joined cluster",
		logger.String("node", c.cfg.NodeName),
		logger.Int("contacted", contacted))
	c.recomputeLeader()

	for _, l := range c.snapshotListeners() {
		l.JoinedCluster()
	}
	return nil
}

// Stop leaves the cluster gracefully and shuts the serf instance down.
func (c *SerfCoordinator) Stop() error {
	close(c.stopCh)
	if c.serf == nil {
		return nil
	}
	if err := c.serf.Leave(); err != nil {
		c.logger.Warn("failed to leave cluster cleanly", logger.Error(err))
	}
	return c.serf.Shutdown()
}

// LocalID returns this node's name.
func (c *SerfCoordinator) LocalID() NodeID {
	return NodeID(c.cfg.NodeName)
}

// IsLeader reports whether this node is the designated leader.
func (c *SerfCoordinator) IsLeader() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leader != "" && c.leader == NodeID(c.cfg.NodeName)
}

// LeaderID returns the current leader, if any member is alive.
func (c *SerfCoordinator) LeaderID() (NodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leader, c.leader != ""
}

// Peers returns every other alive member, smallest name first.
func (c *SerfCoordinator) Peers() []NodeID {
	if c.serf == nil {
		return nil
	}

	names := make([]string, 0, 4)
	for _, m := range c.serf.Members() {
		if m.Status == serf.StatusAlive && m.Name != c.cfg.NodeName {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)

	peers := make([]NodeID, len(names))
	for i, n := range names {
		peers[i] = NodeID(n)
	}
	return peers
}

// Handle installs the handler answering the named query.
func (c *SerfCoordinator) Handle(query string, h QueryHandler) {
	c.mu.Lock()
	c.handlers[query] = h
	c.mu.Unlock()
}

// AddListener subscribes to membership events.
func (c *SerfCoordinator) AddListener(l EventListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// SendSync issues one synchronous query and waits for the first
// response. No response within the timeout, an unreachable target and a
// transport error all collapse to (nil, false); the caller skips its
// merge and relies on the next join event.
func (c *SerfCoordinator) SendSync(ctx context.Context, query string, payload []byte, target NodeID) ([]byte, bool) {
	if target == "" {
		leader, ok := c.LeaderID()
		if !ok {
			return nil, false
		}
		target = leader
	}

	params := &serf.QueryParam{
		FilterNodes: []string{string(target)},
		Timeout:     c.cfg.SyncTimeout,
	}
	resp, err := c.serf.Query(query, payload, params)
	if err != nil {
		c.logger.Warn("cluster query failed",
			logger.String("query", query),
			logger.String("target", string(target)),
			logger.Error(err))
		return nil, false
	}
	defer resp.Close()

	for {
		select {
		case r, ok := <-resp.ResponseCh():
			if !ok {
				return nil, false
			}
			return r.Payload, true
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Broadcast sends a query to every member and discards all responses.
func (c *SerfCoordinator) Broadcast(_ context.Context, query string, payload []byte) error {
	params := &serf.QueryParam{
		Timeout: c.cfg.BroadcastTimeout,
	}
	resp, err := c.serf.Query(query, payload, params)
	if err != nil {
		return fmt.Errorf("failed to broadcast %s: %w", query, err)
	}

	// Drain in the background; the responses carry no information.
	go func() {
		defer resp.Close()
		for range resp.ResponseCh() {
		}
	}()
	return nil
}

func (c *SerfCoordinator) eventLoop() {
	for {
		select {
		case e := <-c.eventCh:
			switch ev := e.(type) {
			case serf.MemberEvent:
				c.handleMemberEvent(ev)
			case *serf.Query:
				// Queries get their own goroutine: a listener callback
				// blocked in a synchronous pull must not stop this node
				// from answering the queries other nodes block on.
				go c.handleQuery(ev)
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *SerfCoordinator) handleMemberEvent(ev serf.MemberEvent) {
	c.recomputeLeader()

	listeners := c.snapshotListeners()

	// Listener callbacks may block in SendSync for the full sync
	// timeout; run them off the event loop so membership and query
	// processing continues meanwhile.
	go func() {
		for _, m := range ev.Members {
			if m.Name == c.cfg.NodeName {
				continue
			}
			id := NodeID(m.Name)
			switch ev.EventType() {
			case serf.EventMemberJoin:
				c.logger.Info("cluster member joined", logger.String("member", m.Name))
				for _, l := range listeners {
					l.MemberJoined(id)
				}
			case serf.EventMemberLeave, serf.EventMemberFailed, serf.EventMemberReap:
				c.logger.Info("cluster member left", logger.String("member", m.Name))
				for _, l := range listeners {
					l.MemberLeft(id)
				}
			}
		}
	}()
}

func (c *SerfCoordinator) handleQuery(q *serf.Query) {
	c.mu.RLock()
	h := c.handlers[q.Name]
	c.mu.RUnlock()

	if h == nil {
		c.logger.Debug("unhandled cluster query", logger.String("query", q.Name))
		return
	}

	resp, err := h(q.Payload)
	if err != nil {
		c.logger.Error("cluster query handler failed",
			logger.String("query", q.Name),
			logger.Error(err))
		return
	}
	if err := q.Respond(resp); err != nil {
		c.logger.Warn("failed to respond to cluster query",
			logger.String("query", q.Name),
			logger.Error(err))
	}
}

// recomputeLeader picks the alive member with the smallest name and
// fires BecameLeader when that designation moved to the local node.
func (c *SerfCoordinator) recomputeLeader() {
	if c.serf == nil {
		return
	}

	names := make([]string, 0, 4)
	for _, m := range c.serf.Members() {
		if m.Status == serf.StatusAlive {
			names = append(names, m.Name)
		}
	}

	var leader NodeID
	if len(names) > 0 {
		sort.Strings(names)
		leader = NodeID(names[0])
	}

	c.mu.Lock()
	was := c.leader
	c.leader = leader
	listeners := make([]EventListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	if leader != was && leader == NodeID(c.cfg.NodeName) {
		c.logger.Info("local node is now the cluster leader")
		for _, l := range listeners {
			l.BecameLeader()
		}
	}
}

func (c *SerfCoordinator) snapshotListeners() []EventListener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]EventListener, len(c.listeners))
	copy(out, c.listeners)
	return out
}
