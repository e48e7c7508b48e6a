package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/parley/internal/cluster"
	"github.com/MrSnakeDoc/parley/internal/config"
	"github.com/MrSnakeDoc/parley/internal/host"
	"github.com/MrSnakeDoc/parley/internal/httpserver"
	"github.com/MrSnakeDoc/parley/internal/httpserver/deps"
	"github.com/MrSnakeDoc/parley/internal/logger"
	"github.com/MrSnakeDoc/parley/internal/redis"
	"github.com/MrSnakeDoc/parley/internal/registry"
	"github.com/MrSnakeDoc/parley/internal/scheduler"
	"github.com/MrSnakeDoc/parley/internal/stats"
	"github.com/MrSnakeDoc/parley/internal/store/redisstore"
	"github.com/MrSnakeDoc/parley/internal/syncer"
	"github.com/MrSnakeDoc/parley/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	registry    *registry.Registry
	endpoints   *host.HTTPHost
	coordinator *cluster.SerfCoordinator
	collector   *stats.MemoryCollector
	reloader    *scheduler.SeedReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient)

	// Endpoint host answering service-addressed requests
	endpoints := host.NewHTTPHost(cfg.Domain, cfg.HostListenPort, loggerClient)

	reg := registry.New(cfg.Domain, store, endpoints, loggerClient)

	// Cluster coordinator
	coordinator := cluster.NewSerfCoordinator(cluster.SerfConfig{
		NodeName:         cfg.NodeName,
		BindAddr:         cfg.ClusterBindAddr,
		BindPort:         cfg.ClusterBindPort,
		Seeds:            cfg.ClusterSeeds,
		SyncTimeout:      cfg.SyncTimeout,
		BroadcastTimeout: cfg.BroadcastTimeout,
	}, loggerClient)

	// Wire cluster synchronization and the change broadcaster
	syncer.New(reg, coordinator, store, loggerClient)
	broadcaster := syncer.NewBroadcaster(coordinator, loggerClient)

	// Statistics
	collector := stats.NewMemoryCollector()
	stats.RegisterRegistryStats(collector, reg)

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	// Initialize seed reloader (if seed file is configured)
	var reloader *scheduler.SeedReloader
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed reloader",
			logger.String("file", cfg.SeedFile))
		reloader = scheduler.NewSeedReloader(
			cfg.SeedFile,
			reg,
			loggerClient,
			cfg.ReloadInterval,
			reloadTrigger,
		)
	} else {
		loggerClient.Info("seed file not configured, seeding disabled")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		Registry:      reg,
		Coordinator:   coordinator,
		Broadcaster:   broadcaster,
		Stats:         collector,
		ReloadTrigger: reloadTrigger,
		RedisClient:   redisClient,
		Store:         store,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		registry:    reg,
		endpoints:   endpoints,
		coordinator: coordinator,
		collector:   collector,
		reloader:    reloader,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Parley v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Parley %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load persisted services and expose their endpoints
	if err := a.registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start registry: %w", err)
	}

	// Start seed reloader (creates declared services and refreshes periodically)
	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	// Join the cluster after local state is ready: the join event pulls
	// the snapshot merge, which needs a live registry underneath.
	if err := a.coordinator.Start(); err != nil {
		return fmt.Errorf("failed to start cluster coordinator: %w", err)
	}
	a.logger.Info("cluster coordinator started",
		logger.String("node", string(a.coordinator.LocalID())))

	errCh := make(chan error, 2)
	go func() {
		if err := a.endpoints.Start(); err != nil {
			errCh <- fmt.Errorf("endpoint host error: %w", err)
		}
	}()
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.reloader != nil {
		a.reloader.Stop()
	}

	if err := a.coordinator.Stop(); err != nil {
		a.logger.Warnf("failed to leave cluster cleanly: %v", err)
	}

	stats.UnregisterRegistryStats(a.collector)
	a.registry.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.endpoints.Stop(shutdownCtx); err != nil {
		a.logger.Warnf("failed to stop endpoint host: %v", err)
	}
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Parley stopped cleanly")
	return nil
}
