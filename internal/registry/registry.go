package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/parley/internal/domain"
	"github.com/MrSnakeDoc/parley/internal/host"
	"github.com/MrSnakeDoc/parley/internal/logger"
)

// Provider is the durable store of service records the registry
// delegates to. Implemented by redisstore.Store.
type Provider interface {
	// LoadAll materializes every persisted service keyed by subdomain.
	LoadAll(ctx context.Context) (map[string]*domain.Service, error)

	// Insert persists a new record and returns its allocated ID.
	Insert(ctx context.Context, subdomain, description string, hidden bool) (int64, error)

	// Update rewrites the record for id; the hidden flag is untouched.
	Update(ctx context.Context, id int64, subdomain, description string) error

	// Delete removes the record for id.
	Delete(ctx context.Context, id int64) error

	// LookupID resolves a subdomain to its persisted ID.
	LookupID(ctx context.Context, subdomain string) (int64, bool, error)

	// LookupSubdomain resolves an ID to its persisted subdomain.
	LookupSubdomain(ctx context.Context, id int64) (string, bool, error)

	// RemoveAffiliations drops a user's stored affiliations everywhere.
	RemoveAffiliations(ctx context.Context, userAddress string) error
}

// Registry owns the mapping from subdomain to live service instance.
//
// Mutations arrive both from administrative call paths and from cluster
// event callbacks; the map supports concurrent reads (including full
// iteration for Services and Count) alongside single-key insert and
// remove. The two-step subdomain rename in Update is deliberately not
// covered by a cross-step lock: lookups during the rename window observe
// no service for either subdomain.
type Registry struct {
	domain   string // base server domain, ex: "example.org"
	provider Provider
	host     host.Host
	logger   logger.Logger

	mu       sync.RWMutex
	services map[string]*domain.Service
}

// New creates an empty registry for subdomains of serverDomain.
func New(serverDomain string, provider Provider, h host.Host, log logger.Logger) *Registry {
	return &Registry{
		domain:   serverDomain,
		provider: provider,
		host:     h,
		logger:   log,
		services: make(map[string]*domain.Service),
	}
}

// Start materializes every persisted service and registers it.
func (r *Registry) Start(ctx context.Context) error {
	services, err := r.provider.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted services: %w", err)
	}
	for _, svc := range services {
		r.Register(svc)
	}
	r.logger.Info("service registry started",
		logger.Int("services", len(services)))
	return nil
}

// Stop unregisters every live service.
func (r *Registry) Stop() {
	for _, svc := range r.Services() {
		r.Unregister(svc.Subdomain())
	}
}

// Register adds svc to the registry keyed by its subdomain, overwriting
// any prior binding for that key, and exposes it as an addressable
// endpoint. Exposure failure is logged and does not undo the
// registration: registry state stays authoritative and the endpoint can
// be re-exposed later.
func (r *Registry) Register(svc *domain.Service) {
	r.logger.Debug("registering service",
		logger.String("subdomain", svc.Subdomain()))

	r.mu.Lock()
	r.services[svc.Subdomain()] = svc
	r.mu.Unlock()

	if err := r.host.Expose(svc.Subdomain(), svc.Handler()); err != nil {
		r.logger.Error("unable to expose service endpoint",
			logger.String("subdomain", svc.Subdomain()),
			logger.Error(err))
	}
}

// Unregister shuts the service bound to subdomain down, withdraws its
// endpoint and removes the binding. No-op if the subdomain is unbound.
func (r *Registry) Unregister(subdomain string) {
	r.mu.RLock()
	svc := r.services[subdomain]
	r.mu.RUnlock()
	if svc == nil {
		return
	}

	r.logger.Debug("unregistering service",
		logger.String("subdomain", subdomain))

	svc.Shutdown()
	if err := r.host.Withdraw(subdomain); err != nil {
		r.logger.Error("unable to withdraw service endpoint",
			logger.String("subdomain", subdomain),
			logger.Error(err))
	}

	r.mu.Lock()
	delete(r.services, subdomain)
	r.mu.Unlock()
}

// Create persists a new service record, constructs the live instance and
// registers it. Returns domain.ErrAlreadyRegistered if the subdomain
// already resolves to a persisted record. A failed create leaves no
// persisted or live trace.
func (r *Registry) Create(ctx context.Context, subdomain, description string, hidden bool) (*domain.Service, error) {
	if _, exists, err := r.provider.LookupID(ctx, subdomain); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("subdomain %s: %w", subdomain, domain.ErrAlreadyRegistered)
	}

	id, err := r.provider.Insert(ctx, subdomain, description, hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to persist service %s: %w", subdomain, err)
	}

	svc := domain.NewService(id, subdomain, description, hidden)
	r.Register(svc)
	return svc, nil
}

// Update changes a service's subdomain and/or description.
//
// When only the description changes, the live instance is mutated in
// place with a single persistence write. When the subdomain changes, the
// old binding is unregistered, the rename persisted and a replacement
// instance (same ID, same visibility) registered. The rename is not
// atomic: between unregister and re-register neither subdomain resolves.
// No I/O beyond the single persistence write happens inside that window.
//
// Returns domain.ErrNotFound if no live service matches id.
func (r *Registry) Update(ctx context.Context, id int64, subdomain, description string) error {
	svc, err := r.ServiceByID(ctx, id)
	if err != nil {
		return err
	}
	if svc == nil {
		return fmt.Errorf("service %d: %w", id, domain.ErrNotFound)
	}

	if svc.Subdomain() == subdomain {
		if err := r.provider.Update(ctx, id, subdomain, description); err != nil {
			return fmt.Errorf("failed to persist service update: %w", err)
		}
		svc.SetDescription(description)
		return nil
	}

	oldSubdomain := svc.Subdomain()
	r.Unregister(oldSubdomain)
	if err := r.provider.Update(ctx, id, subdomain, description); err != nil {
		// Restore the original binding so a failed rename leaves the
		// service reachable under its original subdomain.
		r.Register(domain.NewService(id, oldSubdomain, svc.Description(), svc.Hidden()))
		return fmt.Errorf("failed to persist rename: %w", err)
	}

	r.Register(domain.NewService(id, subdomain, description, svc.Hidden()))
	return nil
}

// UpdateBySubdomain is Update addressed by the current subdomain.
func (r *Registry) UpdateBySubdomain(ctx context.Context, current, subdomain, description string) error {
	id, exists, err := r.provider.LookupID(ctx, current)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("subdomain %s: %w", current, domain.ErrNotFound)
	}
	return r.Update(ctx, id, subdomain, description)
}

// RemoveByID unregisters the live service and deletes its persisted
// record, in that order, so an in-flight request never reaches a service
// whose backing record is already gone.
//
// Returns domain.ErrNotFound if no live service matches id.
func (r *Registry) RemoveByID(ctx context.Context, id int64) error {
	svc, err := r.ServiceByID(ctx, id)
	if err != nil {
		return err
	}
	if svc == nil {
		r.logger.Error("unable to find service to remove",
			logger.Int64("service_id", id))
		return fmt.Errorf("service %d: %w", id, domain.ErrNotFound)
	}

	r.Unregister(svc.Subdomain())
	if err := r.provider.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete service record: %w", err)
	}
	return nil
}

// RemoveBySubdomain is RemoveByID addressed by subdomain.
func (r *Registry) RemoveBySubdomain(ctx context.Context, subdomain string) error {
	id, exists, err := r.provider.LookupID(ctx, subdomain)
	if err != nil {
		return err
	}
	if !exists {
		r.logger.Error("unable to find service to remove",
			logger.String("subdomain", subdomain))
		return fmt.Errorf("subdomain %s: %w", subdomain, domain.ErrNotFound)
	}
	return r.RemoveByID(ctx, id)
}

// ServiceByID resolves id to a subdomain through the provider, then to
// the live instance. A nil service with a nil error means absent.
func (r *Registry) ServiceByID(ctx context.Context, id int64) (*domain.Service, error) {
	subdomain, exists, err := r.provider.LookupSubdomain(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return r.ServiceBySubdomain(subdomain), nil
}

// ServiceBySubdomain returns the live service bound to subdomain, or nil.
func (r *Registry) ServiceBySubdomain(subdomain string) *domain.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[subdomain]
}

// ServiceByAddress resolves any address referring to a service: the
// service hostname itself, a room address or a participant address.
// The host part has the server's base domain stripped and the remainder
// is looked up as a subdomain. Returns nil when the suffix does not
// match or the remainder is unbound.
func (r *Registry) ServiceByAddress(address string) *domain.Service {
	hostname := address
	if at := strings.LastIndex(hostname, "@"); at != -1 {
		hostname = hostname[at+1:]
	}
	if slash := strings.Index(hostname, "/"); slash != -1 {
		hostname = hostname[:slash]
	}

	suffix := "." + r.domain
	if !strings.HasSuffix(hostname, suffix) {
		return nil
	}
	return r.ServiceBySubdomain(strings.TrimSuffix(hostname, suffix))
}

// IsRegistered reports whether a live service is bound to subdomain.
func (r *Registry) IsRegistered(subdomain string) bool {
	if subdomain == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[subdomain]
	return ok
}

// Services returns all live services ordered by subdomain ascending.
func (r *Registry) Services() []*domain.Service {
	r.mu.RLock()
	services := make([]*domain.Service, 0, len(r.services))
	for _, svc := range r.services {
		services = append(services, svc)
	}
	r.mu.RUnlock()

	sort.Slice(services, func(i, j int) bool {
		return services[i].Subdomain() < services[j].Subdomain()
	})
	return services
}

// Count returns the number of live services, optionally excluding
// hidden ones.
func (r *Registry) Count(includeHidden bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := len(r.services)
	if !includeHidden {
		for _, svc := range r.services {
			if svc.Hidden() {
				count--
			}
		}
	}
	return count
}

// ServiceID resolves a subdomain to its persisted ID, if any.
func (r *Registry) ServiceID(ctx context.Context, subdomain string) (int64, bool, error) {
	return r.provider.LookupID(ctx, subdomain)
}

// Domain returns the server's base domain.
func (r *Registry) Domain() string {
	return r.domain
}

// UserDeleting removes a deleted user's stored affiliations across all
// rooms of all services. Rooms already materialized in memory keep the
// user's runtime state; only the durable records are dropped.
func (r *Registry) UserDeleting(ctx context.Context, userAddress string) error {
	if err := r.provider.RemoveAffiliations(ctx, userAddress); err != nil {
		return fmt.Errorf("failed to remove affiliations for %s: %w", userAddress, err)
	}
	r.logger.Info("removed stored affiliations for deleted user",
		logger.String("user", userAddress))
	return nil
}
