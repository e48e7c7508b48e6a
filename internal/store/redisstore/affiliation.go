package redisstore

import (
	"context"
	"fmt"
)

// SaveAffiliation records a user's stored affiliation (owner, admin,
// member, outcast) with one room of one service.
func (s *Store) SaveAffiliation(ctx context.Context, userAddress, subdomain, room, affiliation string) error {
	field := subdomain + "/" + room
	if err := s.client.HSet(ctx, AffiliationKey(userAddress), field, affiliation).Err(); err != nil {
		return fmt.Errorf("failed to save affiliation: %w", err)
	}
	return nil
}

// Affiliations returns a user's stored affiliations keyed by
// "<subdomain>/<room>".
func (s *Store) Affiliations(ctx context.Context, userAddress string) (map[string]string, error) {
	out, err := s.client.HGetAll(ctx, AffiliationKey(userAddress)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load affiliations: %w", err)
	}
	return out, nil
}

// RemoveAffiliations deletes every stored affiliation of the given user
// across all rooms of all services. In-memory room state is not touched;
// occupants already materialized keep their runtime role until they
// leave.
func (s *Store) RemoveAffiliations(ctx context.Context, userAddress string) error {
	if err := s.client.Del(ctx, AffiliationKey(userAddress)).Err(); err != nil {
		return fmt.Errorf("failed to remove affiliations: %w", err)
	}
	return nil
}
