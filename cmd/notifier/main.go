package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(slog.LevelInfo)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "notifier stopped with error", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit for the process supervisor
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.InitLogger(cfg.SlogLevel())

	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}
	logger.InfoContext(ctx, "starting notifier",
		"environment", cfg.Environment,
		"services", bootstrap.GetEnabledServices(&cfg),
		"db", fmt.Sprintf("%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Name),
		"template_cache", cfg.Cache.Enabled,
	)

	infra, err := connect(&cfg, logger)
	if err != nil {
		return err
	}
	defer infra.close(ctx, logger)

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, infra.db, logger); err != nil {
			return err
		}
	}

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          infra.db,
		RedisClient: infra.redis,
		Logger:      logger,
	})

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      &cfg,
		Services:    services,
		DB:          infra.db,
		RedisClient: infra.redis,
		Logger:      logger,
	})
}

// infrastructure owns the process-wide connections. redis is nil when the
// template cache is off or unreachable.
type infrastructure struct {
	db    *sql.DB
	redis redis.UniversalClient
}

func connect(cfg *config.AppConfig, logger *slog.Logger) (*infrastructure, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	db, err := bootstrap.ConnectDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return &infrastructure{
		db:    db,
		redis: bootstrap.ConnectTemplateCache(dbCfg, cfg.Cache),
	}, nil
}

func (i *infrastructure) close(ctx context.Context, logger *slog.Logger) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			logger.WarnContext(ctx, "close redis", "error", err)
		}
	}
	if err := i.db.Close(); err != nil {
		logger.WarnContext(ctx, "close database", "error", err)
	}
}
