package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"notifier"`
	Password string `env:"PASSWORD"                envDefault:"notifier"`
	Name     string `env:"NAME"                    envDefault:"notifier"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
	// MaxOpenConns bounds the pool. Workers are sequential so the pool stays small.
	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"10"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig controls the Redis read-through cache in front of the template registry.
type CacheConfig struct {
	// Enabled turns the template cache on. When off, or when Redis is unreachable at
	// startup, templates are read from Postgres directly.
	Enabled bool `env:"CACHE_ENABLED" envDefault:"true"`

	// TemplateTTL is the TTL for cached templates.
	TemplateTTL time.Duration `env:"CACHE_TEMPLATE_TTL" envDefault:"5m"`
}
