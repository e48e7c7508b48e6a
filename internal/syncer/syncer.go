package syncer

import (
	"context"

	"github.com/MrSnakeDoc/parley/internal/cluster"
	"github.com/MrSnakeDoc/parley/internal/domain"
	"github.com/MrSnakeDoc/parley/internal/logger"
	"github.com/MrSnakeDoc/parley/internal/registry"
)

// RecordSource reads single persisted service records. Implemented by
// redisstore.Store.
type RecordSource interface {
	Load(ctx context.Context, subdomain string) (*domain.Service, bool, error)
}

// Syncer keeps the local registry convergent with the rest of the
// cluster. It answers snapshot queries from other nodes and reacts to
// membership events by pulling the state it is missing.
//
// Two directions exist. When the local node joins an existing cluster it
// pulls a full snapshot from the leader and merges it, remote state
// winning conflicts. When another node joins, the local node asks that
// node for the rooms it hosts and merges those without touching the
// configuration of rooms it already knows.
type Syncer struct {
	registry *registry.Registry
	coord    cluster.Coordinator
	records  RecordSource
	logger   logger.Logger
}

// New wires a syncer into coord: it installs the query handlers this
// node answers with and subscribes to membership events.
func New(reg *registry.Registry, coord cluster.Coordinator, records RecordSource, log logger.Logger) *Syncer {
	s := &Syncer{
		registry: reg,
		coord:    coord,
		records:  records,
		logger:   log,
	}
	coord.Handle(cluster.QueryFullServices, s.handleFullServices)
	coord.Handle(cluster.QueryNewMemberRooms, s.handleNewMemberRooms)
	coord.Handle(cluster.QueryServiceUpdated, s.handleServiceUpdated)
	coord.AddListener(s)
	return s
}

// JoinedCluster pulls the full service snapshot and merges it into the
// local registry. Non-leaders pull from the leader. A node that finds
// itself designated leader right after joining an existing cluster has
// no room state to be authoritative about yet, so it pulls from an
// established peer instead; only a standalone leader skips the pull.
// No response within the coordinator's timeout means the local state is
// kept as-is.
func (s *Syncer) JoinedCluster() {
	var target cluster.NodeID
	if s.coord.IsLeader() {
		peers := s.coord.Peers()
		if len(peers) == 0 {
			return
		}
		target = peers[0]
	}

	resp, ok := s.coord.SendSync(context.Background(), cluster.QueryFullServices, nil, target)
	if !ok {
		s.logger.Warn("no cluster snapshot response, keeping local state")
		return
	}
	infos, err := cluster.DecodeServiceInfos(resp)
	if err != nil {
		s.logger.Error("discarding malformed cluster snapshot", logger.Error(err))
		return
	}

	s.logger.Info("merging cluster snapshot",
		logger.Int("services", len(infos)))
	s.mergeServices(context.Background(), infos, true)
}

// MemberJoined asks the new node for the rooms it hosts and merges them.
// Unlike the full snapshot merge, configurations of rooms this node
// already knows are left untouched.
func (s *Syncer) MemberJoined(id cluster.NodeID) {
	resp, ok := s.coord.SendSync(context.Background(), cluster.QueryNewMemberRooms, nil, id)
	if !ok {
		s.logger.Warn("no room snapshot from new member",
			logger.String("node", string(id)))
		return
	}
	rooms, err := cluster.DecodeRoomSnapshots(resp)
	if err != nil {
		s.logger.Error("discarding malformed room snapshot",
			logger.String("node", string(id)),
			logger.Error(err))
		return
	}

	s.logger.Info("merging rooms from new member",
		logger.String("node", string(id)),
		logger.Int("rooms", len(rooms)))
	s.mergeRooms(rooms, false)
}

// MemberLeft needs no registry work: services and their identifiers are
// cluster-global, not owned by the departed node.
func (s *Syncer) MemberLeft(id cluster.NodeID) {
	s.logger.Debug("cluster member left", logger.String("node", string(id)))
}

// BecameLeader needs no registry work either; leadership only selects
// which node answers full snapshot queries.
func (s *Syncer) BecameLeader() {
	s.logger.Info("local node is now the cluster leader")
}

// handleFullServices answers a full snapshot query with every local
// service, its rooms and their occupant arrivals.
func (s *Syncer) handleFullServices([]byte) ([]byte, error) {
	services := s.registry.Services()
	infos := make([]cluster.ServiceInfo, 0, len(services))
	for _, svc := range services {
		infos = append(infos, cluster.ServiceInfo{
			Subdomain:   svc.Subdomain(),
			Description: svc.Description(),
			Hidden:      svc.Hidden(),
			Rooms:       snapshotRooms(svc),
		})
	}
	return cluster.EncodeServiceInfos(infos)
}

// handleNewMemberRooms answers with the rooms this node hosts, without
// enumerating services.
func (s *Syncer) handleNewMemberRooms([]byte) ([]byte, error) {
	var rooms []cluster.RoomSnapshot
	for _, svc := range s.registry.Services() {
		rooms = append(rooms, snapshotRooms(svc)...)
	}
	return cluster.EncodeRoomSnapshots(rooms)
}

// handleServiceUpdated refreshes the local view of one service from the
// shared store. A missing record means the service was removed remotely;
// a present record for an unknown subdomain means it was created
// remotely.
func (s *Syncer) handleServiceUpdated(payload []byte) ([]byte, error) {
	update, err := cluster.DecodeServiceUpdate(payload)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	fresh, ok, err := s.records.Load(ctx, update.Subdomain)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.registry.Unregister(update.Subdomain)
		return nil, nil
	}

	if live := s.registry.ServiceBySubdomain(update.Subdomain); live != nil {
		live.SetDescription(fresh.Description())
		live.SetHidden(fresh.Hidden())
		return nil, nil
	}
	s.registry.Register(fresh)
	return nil, nil
}

// mergeServices folds a full snapshot into the registry. Unknown
// services are materialized and registered; for known services the
// snapshot's rooms are merged with overwrite controlling whether remote
// room configurations replace local ones.
func (s *Syncer) mergeServices(ctx context.Context, infos []cluster.ServiceInfo, overwrite bool) {
	for _, info := range infos {
		svc := s.registry.ServiceBySubdomain(info.Subdomain)
		if svc == nil {
			svc = s.materialize(ctx, info)
			if svc == nil {
				continue
			}
		} else {
			svc.SetDescription(info.Description)
			svc.SetHidden(info.Hidden)
		}
		s.mergeRoomsInto(svc, info.Rooms, overwrite)
	}
}

// materialize registers a service this node first learns about from a
// snapshot. Its identifier comes from the shared store, where the
// creating node already persisted the record.
func (s *Syncer) materialize(ctx context.Context, info cluster.ServiceInfo) *domain.Service {
	id, ok, err := s.registry.ServiceID(ctx, info.Subdomain)
	if err != nil {
		s.logger.Error("unable to resolve snapshot service ID",
			logger.String("subdomain", info.Subdomain),
			logger.Error(err))
		return nil
	}
	if !ok {
		svc, err := s.registry.Create(ctx, info.Subdomain, info.Description, info.Hidden)
		if err != nil {
			s.logger.Error("unable to create snapshot service",
				logger.String("subdomain", info.Subdomain),
				logger.Error(err))
			return nil
		}
		return svc
	}

	svc := domain.NewService(id, info.Subdomain, info.Description, info.Hidden)
	s.registry.Register(svc)
	return svc
}

// mergeRooms folds standalone room snapshots into the services they
// name. A locally unknown service is adopted from the shared store when
// a record exists there; rooms whose service the store does not know
// either are dropped with a warning.
func (s *Syncer) mergeRooms(rooms []cluster.RoomSnapshot, overwrite bool) {
	ctx := context.Background()
	for _, snap := range rooms {
		svc := s.registry.ServiceBySubdomain(snap.Subdomain)
		if svc == nil {
			svc = s.adopt(ctx, snap.Subdomain)
		}
		if svc == nil {
			s.logger.Warn("dropping room snapshot for unknown service",
				logger.String("subdomain", snap.Subdomain),
				logger.String("room", snap.Name))
			continue
		}
		s.mergeRoomsInto(svc, []cluster.RoomSnapshot{snap}, overwrite)
	}
}

// adopt registers a service that exists in the shared store but has no
// live local binding yet.
func (s *Syncer) adopt(ctx context.Context, subdomain string) *domain.Service {
	fresh, ok, err := s.records.Load(ctx, subdomain)
	if err != nil {
		s.logger.Error("unable to load service record",
			logger.String("subdomain", subdomain),
			logger.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	s.registry.Register(fresh)
	return fresh
}

func (s *Syncer) mergeRoomsInto(svc *domain.Service, rooms []cluster.RoomSnapshot, overwrite bool) {
	for _, snap := range rooms {
		// CreateRoom is get-or-create under one lock; the snapshot merge
		// runs concurrently with the join-time merge over the same room
		// names, so the two must land on the same instance.
		room := svc.CreateRoom(snap.Name, snap.Config)
		if overwrite {
			room.UpdateConfig(snap.Config)
		}

		for _, arrival := range snap.Occupants {
			// Presence is always broadcast on replay so existing local
			// participants learn about the remote occupant.
			_, err := room.AddOccupant(arrival.Nickname, arrival.UserAddress, arrival.Role, true)
			if err != nil {
				s.logger.Warn("dropping conflicting occupant from snapshot",
					logger.String("room", snap.Name),
					logger.String("nickname", arrival.Nickname),
					logger.Error(err))
			}
		}
	}
}

// snapshotRooms captures a service's rooms as replayable snapshots.
func snapshotRooms(svc *domain.Service) []cluster.RoomSnapshot {
	roomList := svc.Rooms()
	rooms := make([]cluster.RoomSnapshot, 0, len(roomList))
	for _, room := range roomList {
		occupants := room.Occupants()
		arrivals := make([]cluster.OccupantArrival, 0, len(occupants))
		for _, occ := range occupants {
			arrivals = append(arrivals, cluster.OccupantArrival{
				Room:         room.Name(),
				Subdomain:    svc.Subdomain(),
				Nickname:     occ.Nickname,
				UserAddress:  occ.UserAddress,
				Role:         occ.Role,
				SendPresence: true,
			})
		}
		rooms = append(rooms, cluster.RoomSnapshot{
			Name:      room.Name(),
			Subdomain: svc.Subdomain(),
			Config:    room.Config(),
			Occupants: arrivals,
		})
	}
	return rooms
}
