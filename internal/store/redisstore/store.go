package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/parley/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store is the persistence provider for service records, backed by Redis.
// Records are shared across all cluster nodes, which is what allows a
// node to resolve the identifier of a service it first learns about from
// a cluster snapshot.
type Store struct {
	client *redis.Client
}

// serviceRecord is the durable shape of a service.
type serviceRecord struct {
	ID          int64  `json:"id"`
	Subdomain   string `json:"subdomain"`
	Description string `json:"description"`
	Hidden      bool   `json:"hidden"`
}

// NewStore creates a new Redis-backed store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// LoadAll retrieves every persisted service record and materializes live
// service instances keyed by subdomain.
func (s *Store) LoadAll(ctx context.Context) (map[string]*domain.Service, error) {
	ids, err := s.client.SMembers(ctx, KeyAllServices).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list service IDs: %w", err)
	}

	services := make(map[string]*domain.Service, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Skip malformed entries rather than failing startup
			continue
		}
		rec, err := s.getRecord(ctx, id)
		if err != nil {
			continue
		}
		services[rec.Subdomain] = domain.NewService(rec.ID, rec.Subdomain, rec.Description, rec.Hidden)
	}
	return services, nil
}

// Load materializes the single persisted service bound to subdomain.
func (s *Store) Load(ctx context.Context, subdomain string) (*domain.Service, bool, error) {
	id, ok, err := s.LookupID(ctx, subdomain)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return domain.NewService(rec.ID, rec.Subdomain, rec.Description, rec.Hidden), true, nil
}

// Insert persists a new service record and returns its allocated ID.
func (s *Store) Insert(ctx context.Context, subdomain, description string, hidden bool) (int64, error) {
	id, err := s.client.Incr(ctx, KeyNextServiceID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate service ID: %w", err)
	}

	rec := serviceRecord{
		ID:          id,
		Subdomain:   subdomain,
		Description: description,
		Hidden:      hidden,
	}
	if err := s.putRecord(ctx, rec); err != nil {
		return 0, err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, SubdomainKey(subdomain), id, 0)
	pipe.SAdd(ctx, KeyAllServices, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to index service: %w", err)
	}
	return id, nil
}

// Update rewrites the record for id with a possibly new subdomain and
// description. The hidden flag is carried over unchanged.
func (s *Store) Update(ctx context.Context, id int64, subdomain, description string) error {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}

	if rec.Subdomain != subdomain {
		pipe := s.client.Pipeline()
		pipe.Del(ctx, SubdomainKey(rec.Subdomain))
		pipe.Set(ctx, SubdomainKey(subdomain), id, 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to move subdomain index: %w", err)
		}
	}

	rec.Subdomain = subdomain
	rec.Description = description
	return s.putRecord(ctx, rec)
}

// Delete removes the record for id along with its indexes.
func (s *Store) Delete(ctx context.Context, id int64) error {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, ServiceKey(id))
	pipe.Del(ctx, SubdomainKey(rec.Subdomain))
	pipe.SRem(ctx, KeyAllServices, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

// LookupID resolves a subdomain to its persisted service ID.
func (s *Store) LookupID(ctx context.Context, subdomain string) (int64, bool, error) {
	raw, err := s.client.Get(ctx, SubdomainKey(subdomain)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to look up subdomain: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt subdomain index for %s: %w", subdomain, err)
	}
	return id, true, nil
}

// LookupSubdomain resolves a service ID to its persisted subdomain.
func (s *Store) LookupSubdomain(ctx context.Context, id int64) (string, bool, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return rec.Subdomain, true, nil
}

func (s *Store) getRecord(ctx context.Context, id int64) (serviceRecord, error) {
	var rec serviceRecord
	data, err := s.client.Get(ctx, ServiceKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rec, redis.Nil
		}
		return rec, fmt.Errorf("failed to get service %d: %w", id, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to unmarshal service %d: %w", id, err)
	}
	return rec, nil
}

func (s *Store) putRecord(ctx context.Context, rec serviceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal service %d: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, ServiceKey(rec.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save service %d: %w", rec.ID, err)
	}
	return nil
}
