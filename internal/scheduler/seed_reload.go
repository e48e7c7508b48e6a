package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/parley/internal/domain"
	"github.com/MrSnakeDoc/parley/internal/logger"
	"github.com/MrSnakeDoc/parley/internal/registry"
	"github.com/MrSnakeDoc/parley/internal/sources/seedfile"
)

// SeedReloader handles periodic reloading of the service seed file. Seeds
// declare services that must exist; the reloader creates the missing ones
// and never removes anything, so administratively created services are
// untouched.
type SeedReloader struct {
	loader        *seedfile.Loader
	registry      *registry.Registry
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSeedReloader creates a new seed reloader
func NewSeedReloader(
	seedFile string,
	reg *registry.Registry,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SeedReloader {
	return &SeedReloader{
		loader:        seedfile.NewLoader(seedFile),
		registry:      reg,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic reload process
func (sr *SeedReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	// Start periodic reload
	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload seed services",
						logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual reload triggered")
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload seed services",
						logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (sr *SeedReloader) Stop() {
	close(sr.stopCh)
}

// Reload loads the seed file and creates every service it declares that
// is not registered yet.
func (sr *SeedReloader) Reload(ctx context.Context) error {
	sr.logger.Info("reloading services from seed file")

	config, err := sr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load seeds: %w", err)
	}

	var created int
	for _, seed := range config.Services {
		if sr.registry.IsRegistered(seed.Subdomain) {
			continue
		}
		_, err := sr.registry.Create(ctx, seed.Subdomain, seed.Description, seed.Hidden)
		if err != nil {
			// Already persisted means another node created it first.
			if errors.Is(err, domain.ErrAlreadyRegistered) {
				continue
			}
			sr.logger.Error("failed to create seed service",
				logger.String("subdomain", seed.Subdomain),
				logger.Error(err))
			continue
		}
		created++
	}

	sr.logger.Info("seed reload complete",
		logger.Int("declared", len(config.Services)),
		logger.Int("created", created))
	return nil
}
