package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	CatalogMemory   = "memory"
	CatalogPostgres = "postgres"
)

type ServerConfig struct {
	Host            string
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// StoreConfig selects where engine snapshots and the catalog live.
type StoreConfig struct {
	Backend         string
	BadgerPath      string
	KeyPrefix       string
	CatalogBackend  string
	CatalogSeedPath string
}

type AnalyticsConfig struct {
	DecayInterval      time.Duration
	MaxViewerDrop      int
	RetentionBuckets   int
	NominalVideoLength time.Duration
	LegacyRetention    bool
}

type MonetizationConfig struct {
	PreRollEnabled     bool
	MidRollEnabled     bool
	PostRollEnabled    bool
	MidRollInterval    time.Duration
	SuperChatEnabled   bool
	MembershipsEnabled bool
	MerchandiseEnabled bool
}

type ModerationConfig struct {
	BlockedWords []string
}

type DeliveryConfig struct {
	BandwidthRefresh time.Duration
	BufferTarget     time.Duration
}

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type WorkerConfig struct {
	QueueEnabled      bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Store        StoreConfig
	Analytics    AnalyticsConfig
	Monetization MonetizationConfig
	Moderation   ModerationConfig
	Delivery     DeliveryConfig
	Breaker      BreakerConfig
	Worker       WorkerConfig
	LogLevel     string
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "sandtube"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(getEnv("STORE_BACKEND", StoreBadger)),
			BadgerPath:      getEnv("STORE_BADGER_PATH", "./data/badger"),
			KeyPrefix:       getEnv("STORE_KEY_PREFIX", "sandtube"),
			CatalogBackend:  strings.ToLower(getEnv("CATALOG_BACKEND", CatalogMemory)),
			CatalogSeedPath: getEnv("CATALOG_SEED_PATH", ""),
		},
		Analytics: AnalyticsConfig{
			DecayInterval:      getDurationEnv("ANALYTICS_DECAY_INTERVAL", 30*time.Second),
			MaxViewerDrop:      getIntEnv("ANALYTICS_MAX_VIEWER_DROP", 3),
			RetentionBuckets:   getIntEnv("ANALYTICS_RETENTION_BUCKETS", 100),
			NominalVideoLength: getDurationEnv("ANALYTICS_NOMINAL_VIDEO_LENGTH", 600*time.Second),
			LegacyRetention:    getBoolEnv("ANALYTICS_LEGACY_RETENTION", false),
		},
		Monetization: MonetizationConfig{
			PreRollEnabled:     getBoolEnv("MONETIZATION_PREROLL_ENABLED", true),
			MidRollEnabled:     getBoolEnv("MONETIZATION_MIDROLL_ENABLED", true),
			PostRollEnabled:    getBoolEnv("MONETIZATION_POSTROLL_ENABLED", true),
			MidRollInterval:    getDurationEnv("MONETIZATION_MIDROLL_INTERVAL", 300*time.Second),
			SuperChatEnabled:   getBoolEnv("MONETIZATION_SUPERCHAT_ENABLED", true),
			MembershipsEnabled: getBoolEnv("MONETIZATION_MEMBERSHIPS_ENABLED", true),
			MerchandiseEnabled: getBoolEnv("MONETIZATION_MERCHANDISE_ENABLED", true),
		},
		Moderation: ModerationConfig{
			BlockedWords: getListEnv("MODERATION_BLOCKED_WORDS"),
		},
		Delivery: DeliveryConfig{
			BandwidthRefresh: getDurationEnv("DELIVERY_BANDWIDTH_REFRESH", 10*time.Second),
			BufferTarget:     getDurationEnv("DELIVERY_BUFFER_TARGET", 30*time.Second),
		},
		Breaker: BreakerConfig{
			MaxRequests:      uint32(getIntEnv("BREAKER_MAX_REQUESTS", 1)),
			Interval:         getDurationEnv("BREAKER_INTERVAL", time.Minute),
			Timeout:          getDurationEnv("BREAKER_TIMEOUT", 30*time.Second),
			FailureThreshold: uint32(getIntEnv("BREAKER_FAILURE_THRESHOLD", 5)),
		},
		Worker: WorkerConfig{
			QueueEnabled:      getBoolEnv("WORKER_QUEUE_ENABLED", true),
			MaxConcurrentJobs: getIntEnv("WORKER_MAX_CONCURRENT_JOBS", 10),
			JobTimeout:        getDurationEnv("WORKER_JOB_TIMEOUT", 30*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreBadger:
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("badger path is required for the badger store")
		}
	case StoreRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("redis host is required for the redis store")
		}
	case StorePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("database configuration is incomplete")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Store.CatalogBackend {
	case CatalogMemory:
	case CatalogPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("database configuration is incomplete")
		}
	default:
		return fmt.Errorf("unknown catalog backend %q", c.Store.CatalogBackend)
	}

	if c.Analytics.DecayInterval <= 0 {
		return fmt.Errorf("analytics decay interval must be positive")
	}
	if c.Analytics.MaxViewerDrop < 0 {
		return fmt.Errorf("analytics max viewer drop cannot be negative")
	}
	if c.Analytics.RetentionBuckets <= 0 {
		return fmt.Errorf("analytics retention buckets must be positive")
	}
	if c.Analytics.NominalVideoLength <= 0 {
		return fmt.Errorf("analytics nominal video length must be positive")
	}
	if c.Monetization.MidRollInterval < time.Second {
		return fmt.Errorf("mid-roll interval must be at least one second")
	}
	if c.Delivery.BandwidthRefresh <= 0 || c.Delivery.BufferTarget <= 0 {
		return fmt.Errorf("delivery intervals must be positive")
	}
	if c.Worker.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("worker concurrency must be positive")
	}
	return nil
}

// NeedsDatabase reports whether any configured backend talks to postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Store.Backend == StorePostgres || c.Store.CatalogBackend == CatalogPostgres
}

// NeedsRedis reports whether the store or the task queue talks to redis.
func (c *Config) NeedsRedis() bool {
	return c.Store.Backend == StoreRedis || c.Worker.QueueEnabled
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated value. Unset yields nil so callers can
// fall back to their built-in list.
func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
