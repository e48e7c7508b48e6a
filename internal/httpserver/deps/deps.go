package deps

import (
	"time"

	"github.com/MrSnakeDoc/parley/internal/cluster"
	"github.com/MrSnakeDoc/parley/internal/logger"
	"github.com/MrSnakeDoc/parley/internal/registry"
	"github.com/MrSnakeDoc/parley/internal/stats"
	"github.com/MrSnakeDoc/parley/internal/store/redisstore"
	"github.com/MrSnakeDoc/parley/internal/syncer"
	"github.com/redis/go-redis/v9"
)

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time       // for testing, defaults to time.Now
	Registry      *registry.Registry     // live service registry
	Coordinator   cluster.Coordinator    // cluster membership and queries
	Broadcaster   *syncer.Broadcaster    // pushes config changes to peers
	Stats         *stats.MemoryCollector // published statistics
	ReloadTrigger chan struct{}          // channel to trigger manual seed reload
	RedisClient   *redis.Client          // Redis client connection
	Store         *redisstore.Store      // persisted records and affiliations
}
