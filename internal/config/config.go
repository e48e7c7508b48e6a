package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Domain          string        // base server domain, ex: "example.org"
	ListenPort      string        // ex: ":8080"
	HostListenPort  string        // listener for service endpoints, ex: ":5270"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	SeedFile       string        // path to services seed yaml (optional, empty = seeding disabled)
	ReloadInterval time.Duration // interval to re-apply the seed file (default: 24h)

	// Cluster
	NodeName         string        // unique cluster node name (default: hostname)
	ClusterBindAddr  string        // serf bind address (ex: "0.0.0.0")
	ClusterBindPort  int           // serf bind port (ex: 7946)
	ClusterSeeds     []string      // addresses of existing members to join (empty = standalone)
	SyncTimeout      time.Duration // timeout for synchronous cluster queries (ex: 10s)
	BroadcastTimeout time.Duration // timeout for cluster-wide invalidation broadcasts (ex: 5s)

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		Domain:          requireEnv("PARLEY_DOMAIN"),
		ListenPort:      getenv("PARLEY_LISTEN_PORT", ":8080"),
		HostListenPort:  getenv("PARLEY_HOST_LISTEN_PORT", ":5270"),
		ShutdownTimeout: mustDuration("PARLEY_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("PARLEY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PARLEY_PRETTY_LOG", true),

		// Seed file
		SeedFile:       getenv("PARLEY_SEED_FILE", ""), // Optional, empty = seeding disabled
		ReloadInterval: mustDuration("PARLEY_RELOAD_SEED_INTERVAL", 24*time.Hour),

		// Cluster settings
		NodeName:         getenv("PARLEY_NODE_NAME", defaultNodeName()),
		ClusterBindAddr:  getenv("PARLEY_CLUSTER_BIND_ADDR", "0.0.0.0"),
		ClusterBindPort:  getenvInt("PARLEY_CLUSTER_BIND_PORT", 7946),
		ClusterSeeds:     splitAndTrim(getenv("PARLEY_CLUSTER_SEEDS", "")),
		SyncTimeout:      mustDuration("PARLEY_CLUSTER_SYNC_TIMEOUT", 10*time.Second),
		BroadcastTimeout: mustDuration("PARLEY_CLUSTER_BROADCAST_TIMEOUT", 5*time.Second),

		// Redis settings
		RedisAddr:           requireEnv("PARLEY_REDIS_ADDR"),
		RedisUser:           getenv("PARLEY_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("PARLEY_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("PARLEY_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func defaultNodeName() string {
	host, err := os.Hostname()
	if err != nil {
		return "parley"
	}
	return host
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
