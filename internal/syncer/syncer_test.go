package syncer

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/parley/internal/cluster"
	"github.com/MrSnakeDoc/parley/internal/domain"
	"github.com/MrSnakeDoc/parley/internal/logger"
	"github.com/MrSnakeDoc/parley/internal/registry"
)

// fakeCoord routes synchronous queries to the handlers installed on a
// peer coordinator, standing in for the cluster transport.
type fakeCoord struct {
	leader      bool
	peers       []cluster.NodeID
	handlers    map[string]cluster.QueryHandler
	peer        *fakeCoord
	sendFail    bool
	sendCalls   int
	sendTargets []cluster.NodeID
	broadcasts  []string
}

func newFakeCoord() *fakeCoord {
	return &fakeCoord{handlers: make(map[string]cluster.QueryHandler)}
}

func (c *fakeCoord) LocalID() cluster.NodeID { return "local" }

func (c *fakeCoord) IsLeader() bool { return c.leader }

func (c *fakeCoord) LeaderID() (cluster.NodeID, bool) { return "leader", true }

func (c *fakeCoord) Peers() []cluster.NodeID { return c.peers }

func (c *fakeCoord) SendSync(_ context.Context, query string, payload []byte, target cluster.NodeID) ([]byte, bool) {
	c.sendCalls++
	c.sendTargets = append(c.sendTargets, target)
	if c.sendFail || c.peer == nil {
		return nil, false
	}
	h, ok := c.peer.handlers[query]
	if !ok {
		return nil, false
	}
	resp, err := h(payload)
	if err != nil {
		return nil, false
	}
	return resp, true
}

func (c *fakeCoord) Broadcast(_ context.Context, query string, payload []byte) error {
	c.broadcasts = append(c.broadcasts, query)
	if c.peer != nil {
		if h, ok := c.peer.handlers[query]; ok {
			if _, err := h(payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *fakeCoord) Handle(query string, h cluster.QueryHandler) { c.handlers[query] = h }

func (c *fakeCoord) AddListener(cluster.EventListener) {}

type memProvider struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*domain.Service // keyed by subdomain
}

func newMemProvider() *memProvider {
	return &memProvider{records: make(map[string]*domain.Service)}
}

func (p *memProvider) seed(id int64, subdomain, description string, hidden bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[subdomain] = domain.NewService(id, subdomain, description, hidden)
}

func (p *memProvider) LoadAll(_ context.Context) (map[string]*domain.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]*domain.Service, len(p.records))
	for sub, svc := range p.records {
		out[sub] = svc
	}
	return out, nil
}

func (p *memProvider) Load(_ context.Context, subdomain string) (*domain.Service, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	svc, ok := p.records[subdomain]
	return svc, ok, nil
}

func (p *memProvider) Insert(_ context.Context, subdomain, description string, hidden bool) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	p.records[subdomain] = domain.NewService(p.nextID, subdomain, description, hidden)
	return p.nextID, nil
}

func (p *memProvider) Update(_ context.Context, id int64, subdomain, description string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sub, svc := range p.records {
		if svc.ID() == id {
			delete(p.records, sub)
			p.records[subdomain] = domain.NewService(id, subdomain, description, svc.Hidden())
			return nil
		}
	}
	return domain.ErrNotFound
}

func (p *memProvider) Delete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sub, svc := range p.records {
		if svc.ID() == id {
			delete(p.records, sub)
			return nil
		}
	}
	return nil
}

func (p *memProvider) LookupID(_ context.Context, subdomain string) (int64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	svc, ok := p.records[subdomain]
	if !ok {
		return 0, false, nil
	}
	return svc.ID(), true, nil
}

func (p *memProvider) LookupSubdomain(_ context.Context, id int64) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sub, svc := range p.records {
		if svc.ID() == id {
			return sub, true, nil
		}
	}
	return "", false, nil
}

func (p *memProvider) RemoveAffiliations(context.Context, string) error { return nil }

type nullHost struct{}

func (nullHost) Expose(string, http.Handler) error { return nil }

func (nullHost) Withdraw(string) error { return nil }

func newNode(t *testing.T) (*registry.Registry, *memProvider) {
	t.Helper()
	provider := newMemProvider()
	return registry.New("example.org", provider, nullHost{}, logger.Nop()), provider
}

func TestStandaloneLeaderSkipsSnapshotPull(t *testing.T) {
	reg, provider := newNode(t)
	coord := newFakeCoord()
	coord.leader = true

	s := New(reg, coord, provider, logger.Nop())
	s.JoinedCluster()

	if coord.sendCalls != 0 {
		t.Errorf("standalone leader issued %d snapshot pulls, want 0", coord.sendCalls)
	}
}

func TestFreshLeaderPullsFromEstablishedPeer(t *testing.T) {
	ctx := context.Background()

	// The established node holds the state, even though the newly
	// joined node's name designates it leader.
	peerReg, peerProvider := newNode(t)
	peerCoord := newFakeCoord()
	New(peerReg, peerCoord, peerProvider, logger.Nop())
	peerSvc, err := peerReg.Create(ctx, "conference", "rooms", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	reg, provider := newNode(t)
	provider.seed(peerSvc.ID(), "conference", "rooms", false)
	coord := newFakeCoord()
	coord.leader = true
	coord.peers = []cluster.NodeID{"node-2"}
	coord.peer = peerCoord

	s := New(reg, coord, provider, logger.Nop())
	s.JoinedCluster()

	if len(coord.sendTargets) != 1 || coord.sendTargets[0] != "node-2" {
		t.Fatalf("pull targets = %v, want [node-2]", coord.sendTargets)
	}
	if reg.ServiceBySubdomain("conference") == nil {
		t.Error("fresh leader did not merge the peer snapshot")
	}
}

func TestJoinedClusterNoResponseKeepsLocalState(t *testing.T) {
	reg, provider := newNode(t)
	if _, err := reg.Create(context.Background(), "conference", "", false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	coord := newFakeCoord()
	coord.sendFail = true
	s := New(reg, coord, provider, logger.Nop())
	s.JoinedCluster()

	if reg.ServiceBySubdomain("conference") == nil {
		t.Error("missing snapshot response must not disturb local state")
	}
}

func TestJoinedClusterMergesLeaderSnapshot(t *testing.T) {
	ctx := context.Background()

	// The leader hosts conference/lobby with two occupants.
	leaderReg, leaderProvider := newNode(t)
	leaderCoord := newFakeCoord()
	leaderCoord.leader = true
	New(leaderReg, leaderCoord, leaderProvider, logger.Nop())

	leaderSvc, err := leaderReg.Create(ctx, "conference", "leader description", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	lobby := leaderSvc.CreateRoom("lobby", domain.RoomConfig{Subject: "welcome", Persistent: true})
	if _, err := lobby.AddOccupant("alice", "alice@example.org", "moderator", false); err != nil {
		t.Fatalf("AddOccupant: %v", err)
	}
	if _, err := lobby.AddOccupant("bob", "bob@example.org", "participant", false); err != nil {
		t.Fatalf("AddOccupant: %v", err)
	}

	// The joining node already knows the service and the room, with a
	// diverged configuration and one conflicting nickname.
	followerReg, followerProvider := newNode(t)
	followerProvider.seed(leaderSvc.ID(), "conference", "stale description", false)
	if err := followerReg.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	localSvc := followerReg.ServiceBySubdomain("conference")
	localLobby := localSvc.CreateRoom("lobby", domain.RoomConfig{Subject: "old subject"})
	if _, err := localLobby.AddOccupant("alice", "impostor@example.org", "participant", false); err != nil {
		t.Fatalf("AddOccupant: %v", err)
	}

	followerCoord := newFakeCoord()
	followerCoord.peer = leaderCoord
	s := New(followerReg, followerCoord, followerProvider, logger.Nop())
	s.JoinedCluster()

	if got := localSvc.Description(); got != "leader description" {
		t.Errorf("description = %q, want leader's", got)
	}
	if got := localLobby.Config().Subject; got != "welcome" {
		t.Errorf("room subject = %q, want leader's", got)
	}
	if !localLobby.Config().Persistent {
		t.Error("room config not overwritten by snapshot")
	}

	// The remote "alice" conflicts with the local one and is dropped.
	if got := localLobby.Occupant("alice").UserAddress; got != "impostor@example.org" {
		t.Errorf("conflicting nickname replaced local occupant: %s", got)
	}
	if localLobby.Occupant("bob") == nil {
		t.Error("non-conflicting remote occupant not replayed")
	}
	if got := localLobby.OccupantCount(); got != 2 {
		t.Errorf("occupant count = %d, want 2", got)
	}

	// Replaying bob's arrival broadcast presence to the local occupant.
	if got := localSvc.OutgoingMessageCount(); got == 0 {
		t.Error("replayed arrival did not broadcast presence")
	}
}

func TestJoinedClusterMaterializesUnknownService(t *testing.T) {
	ctx := context.Background()

	leaderReg, leaderProvider := newNode(t)
	leaderCoord := newFakeCoord()
	leaderCoord.leader = true
	New(leaderReg, leaderCoord, leaderProvider, logger.Nop())
	leaderSvc, err := leaderReg.Create(ctx, "conference", "rooms", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	followerReg, followerProvider := newNode(t)
	// The record is already visible through the shared store.
	followerProvider.seed(leaderSvc.ID(), "conference", "rooms", true)

	followerCoord := newFakeCoord()
	followerCoord.peer = leaderCoord
	s := New(followerReg, followerCoord, followerProvider, logger.Nop())
	s.JoinedCluster()

	merged := followerReg.ServiceBySubdomain("conference")
	if merged == nil {
		t.Fatal("snapshot service not materialized")
	}
	if merged.ID() != leaderSvc.ID() {
		t.Errorf("materialized ID = %d, want %d", merged.ID(), leaderSvc.ID())
	}
	if !merged.Hidden() {
		t.Error("materialized service lost hidden flag")
	}
}

func TestMemberJoinedMergesWithoutOverwrite(t *testing.T) {
	ctx := context.Background()

	newcomerReg, newcomerProvider := newNode(t)
	newcomerCoord := newFakeCoord()
	New(newcomerReg, newcomerCoord, newcomerProvider, logger.Nop())
	newcomerSvc, err := newcomerReg.Create(ctx, "conference", "", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	remoteRoom := newcomerSvc.CreateRoom("lobby", domain.RoomConfig{Subject: "remote subject"})
	if _, err := remoteRoom.AddOccupant("carol", "carol@example.org", "participant", false); err != nil {
		t.Fatalf("AddOccupant: %v", err)
	}
	newcomerSvc.CreateRoom("orphan", domain.RoomConfig{})

	localReg, localProvider := newNode(t)
	if _, err := localReg.Create(ctx, "conference", "", false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	localSvc := localReg.ServiceBySubdomain("conference")
	localLobby := localSvc.CreateRoom("lobby", domain.RoomConfig{Subject: "local subject"})

	localCoord := newFakeCoord()
	localCoord.peer = newcomerCoord
	s := New(localReg, localCoord, localProvider, logger.Nop())
	s.MemberJoined("node-2")

	if got := localLobby.Config().Subject; got != "local subject" {
		t.Errorf("member join overwrote known room config: %q", got)
	}
	if localLobby.Occupant("carol") == nil {
		t.Error("remote occupant not merged")
	}
	if localSvc.Room("orphan") == nil {
		t.Error("new remote room not created")
	}
}

func TestMemberJoinedAdoptsServiceFromSharedStore(t *testing.T) {
	ctx := context.Background()

	newcomerReg, newcomerProvider := newNode(t)
	newcomerCoord := newFakeCoord()
	New(newcomerReg, newcomerCoord, newcomerProvider, logger.Nop())
	files, err := newcomerReg.Create(ctx, "files", "file sharing", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inbox := files.CreateRoom("inbox", domain.RoomConfig{})
	if _, err := inbox.AddOccupant("dave", "dave@example.org", "participant", false); err != nil {
		t.Fatalf("AddOccupant: %v", err)
	}
	ghost, err := newcomerReg.Create(ctx, "ghost", "", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ghost.CreateRoom("haunt", domain.RoomConfig{})

	// The local node has no live binding for either service, but the
	// shared store already holds the record for "files".
	localReg, localProvider := newNode(t)
	localProvider.seed(files.ID(), "files", "file sharing", false)

	localCoord := newFakeCoord()
	localCoord.peer = newcomerCoord
	s := New(localReg, localCoord, localProvider, logger.Nop())
	s.MemberJoined("node-2")

	adopted := localReg.ServiceBySubdomain("files")
	if adopted == nil {
		t.Fatal("service with a shared-store record not adopted")
	}
	if adopted.ID() != files.ID() {
		t.Errorf("adopted ID = %d, want %d", adopted.ID(), files.ID())
	}
	room := adopted.Room("inbox")
	if room == nil {
		t.Fatal("adopted service lost its room snapshot")
	}
	if room.Occupant("dave") == nil {
		t.Error("occupant not replayed into adopted room")
	}

	// No shared-store record means nothing to attach the room to.
	if localReg.ServiceBySubdomain("ghost") != nil {
		t.Error("service without a shared-store record was adopted")
	}
}

func TestConcurrentMergesAdoptRoomOnce(t *testing.T) {
	ctx := context.Background()

	snapshotFor := func(nickname string) []cluster.RoomSnapshot {
		return []cluster.RoomSnapshot{{
			Name:      "lobby",
			Subdomain: "conference",
			Config:    domain.RoomConfig{Subject: "welcome"},
			Occupants: []cluster.OccupantArrival{{
				Room:         "lobby",
				Subdomain:    "conference",
				Nickname:     nickname,
				UserAddress:  nickname + "@example.org",
				Role:         "participant",
				SendPresence: true,
			}},
		}}
	}

	// The join-time merge and a member-join merge race over the same
	// unknown room; both replayed occupants must land in one instance.
	for i := 0; i < 200; i++ {
		reg, provider := newNode(t)
		if _, err := reg.Create(ctx, "conference", "", false); err != nil {
			t.Fatalf("Create: %v", err)
		}
		svc := reg.ServiceBySubdomain("conference")
		s := New(reg, newFakeCoord(), provider, logger.Nop())

		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			s.mergeRooms(snapshotFor("alice"), true)
		}()
		go func() {
			defer wg.Done()
			<-start
			s.mergeRooms(snapshotFor("bob"), false)
		}()
		close(start)
		wg.Wait()

		if got := svc.RoomCount(); got != 1 {
			t.Fatalf("iteration %d: rooms = %d, want 1", i, got)
		}
		lobby := svc.Room("lobby")
		if lobby.Occupant("alice") == nil || lobby.Occupant("bob") == nil {
			t.Fatalf("iteration %d: occupant lost in concurrent room adoption", i)
		}
	}
}

func TestHandleServiceUpdated(t *testing.T) {
	ctx := context.Background()
	reg, provider := newNode(t)
	coord := newFakeCoord()
	s := New(reg, coord, provider, logger.Nop())

	svc, err := reg.Create(ctx, "conference", "old", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Remote edit: refresh description and visibility in place.
	provider.seed(svc.ID(), "conference", "new", true)
	payload, err := cluster.EncodeServiceUpdate("conference")
	if err != nil {
		t.Fatalf("EncodeServiceUpdate: %v", err)
	}
	if _, err := s.handleServiceUpdated(payload); err != nil {
		t.Fatalf("handleServiceUpdated: %v", err)
	}
	if svc.Description() != "new" || !svc.Hidden() {
		t.Errorf("service not refreshed: %q hidden=%v", svc.Description(), svc.Hidden())
	}

	// Remote create: a record for a subdomain this node never saw.
	provider.seed(99, "files", "file sharing", false)
	payload, _ = cluster.EncodeServiceUpdate("files")
	if _, err := s.handleServiceUpdated(payload); err != nil {
		t.Fatalf("handleServiceUpdated: %v", err)
	}
	if reg.ServiceBySubdomain("files") == nil {
		t.Error("remotely created service not registered")
	}

	// Remote remove: the record disappeared from the store.
	if err := provider.Delete(ctx, svc.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	payload, _ = cluster.EncodeServiceUpdate("conference")
	if _, err := s.handleServiceUpdated(payload); err != nil {
		t.Fatalf("handleServiceUpdated: %v", err)
	}
	if reg.ServiceBySubdomain("conference") != nil {
		t.Error("remotely removed service still registered")
	}
}

func TestBroadcasterServiceUpdated(t *testing.T) {
	provider := newMemProvider()
	coord := newFakeCoord()

	peerReg, peerProvider := newNode(t)
	peerCoord := newFakeCoord()
	New(peerReg, peerCoord, peerProvider, logger.Nop())
	coord.peer = peerCoord

	svc, err := provider.Insert(context.Background(), "conference", "rooms", false)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	peerProvider.seed(svc, "conference", "rooms", false)

	b := NewBroadcaster(coord, logger.Nop())
	b.ServiceUpdated(context.Background(), "conference")

	if len(coord.broadcasts) != 1 || coord.broadcasts[0] != cluster.QueryServiceUpdated {
		t.Fatalf("broadcasts = %v", coord.broadcasts)
	}
	if peerReg.ServiceBySubdomain("conference") == nil {
		t.Error("peer did not pick up the broadcast service")
	}
}
