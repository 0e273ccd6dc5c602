package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/redis/go-redis/v9"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/data"
)

const connectTimeout = 5 * time.Second

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

func postgresDSN(cfg config.DBConfig) string {
	// url.URL escapes special characters in credentials
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// ConnectDB opens the Postgres pool and verifies it with a ping.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Workers run sequentially per channel so the pool stays small.
	maxOpen := cfg.DBConfig.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(5, maxOpen))
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
			"max_open_conns", maxOpen,
		)
	}
	return db, nil
}

type redisMode string

const (
	redisModeDirect   redisMode = "direct"
	redisModeSentinel redisMode = "sentinel"
	redisModeCluster  redisMode = "cluster"
)

// redisTarget is a resolved Redis topology. desc never carries credentials.
type redisTarget struct {
	mode redisMode
	opts *redis.UniversalOptions
	desc string
}

func resolveRedisTarget(cfg config.RedisConfig) (redisTarget, error) {
	opts := &redis.UniversalOptions{Password: cfg.Password}

	switch {
	case cfg.UseCluster:
		opts.Addrs = trimAll(cfg.ClusterNodes)
		if len(opts.Addrs) == 0 {
			if err := applyRedisURI(opts, cfg.URI); err != nil {
				return redisTarget{}, fmt.Errorf("parse redis cluster uri: %w", err)
			}
		}
		if len(opts.Addrs) == 0 {
			return redisTarget{}, errors.New("redis cluster configuration requires at least one address")
		}
		return redisTarget{mode: redisModeCluster, opts: opts, desc: "cluster:" + strings.Join(opts.Addrs, ",")}, nil

	case cfg.UseSentinel:
		opts.Addrs = trimAll(cfg.SentinelNodes)
		if len(opts.Addrs) == 0 {
			return redisTarget{}, errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		opts.MasterName = cfg.SentinelMasterName
		opts.SentinelPassword = cfg.SentinelPassword
		return redisTarget{mode: redisModeSentinel, opts: opts, desc: "sentinel:" + cfg.SentinelMasterName}, nil

	default:
		if err := applyRedisURI(opts, cfg.URI); err != nil {
			return redisTarget{}, fmt.Errorf("parse redis uri: %w", err)
		}
		if len(opts.Addrs) == 0 {
			return redisTarget{}, errors.New("redis direct configuration requires a URI")
		}
		return redisTarget{mode: redisModeDirect, opts: opts, desc: opts.Addrs[0]}, nil
	}
}

// applyRedisURI accepts host:port or a redis:// / rediss:// URL. URL credentials win
// over the configured password.
func applyRedisURI(opts *redis.UniversalOptions, uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		opts.Addrs = []string{uri}
		return nil
	}
	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return err
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	opts.DB = parsed.DB
	opts.TLSConfig = parsed.TLSConfig
	return nil
}

func trimAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ConnectRedis connects to a direct, sentinel or cluster Redis and verifies it with a ping.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	target, err := resolveRedisTarget(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch target.mode {
	case redisModeCluster:
		client = redis.NewClusterClient(target.opts.Cluster())
	case redisModeSentinel:
		client = redis.NewFailoverClient(target.opts.Failover())
	case redisModeDirect:
		client = redis.NewClient(target.opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "mode", string(target.mode), "addr", target.desc)
	}
	return client, nil
}

// ConnectTemplateCache connects Redis for the template cache. The cache is optional:
// when it is disabled or Redis is unreachable, nil is returned and templates are read
// from Postgres directly.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectTemplateCache(cfg DatabaseConfig, cache config.CacheConfig) redis.UniversalClient {
	if !cache.Enabled {
		return nil
	}
	client, err := ConnectRedis(cfg)
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("template cache unavailable; reading templates from postgres", "error", err)
		}
		return nil
	}
	return client
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}
	return nil
}
