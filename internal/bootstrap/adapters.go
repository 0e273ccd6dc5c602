package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/adapters/jobrunner"
	"github.com/academic360/notifier/internal/adapters/reaper"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/observability/metrics"
	"github.com/academic360/notifier/internal/service/failurenotifier"
)

// DeliveryWorkerConfig contains configuration for one channel's delivery worker.
type DeliveryWorkerConfig struct {
	DB              *sql.DB
	Channel         model.Channel
	Config          *config.AppConfig
	Logger          *slog.Logger
	Cache           core.CacheRepository
	Metrics         metrics.Sink
	FailureNotifier *failurenotifier.Service

	// Client replaces the configured provider client (tests).
	Client core.DeliveryClient
}

// RunDeliveryWorker starts the delivery worker for cfg.Channel and blocks until ctx ends.
func RunDeliveryWorker(ctx context.Context, cfg DeliveryWorkerConfig) error {
	runner, err := jobrunner.NewRunner(ctx, jobrunner.RunnerOptions{
		DB:              cfg.DB,
		Channel:         cfg.Channel,
		Config:          cfg.Config,
		Logger:          cfg.Logger,
		Cache:           cfg.Cache,
		Client:          cfg.Client,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create %s runner: %w", cfg.Channel, err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run %s runner: %w", cfg.Channel, runErr)
	}
	return nil
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB       *sql.DB
	Logger   *slog.Logger
	Config   config.ReaperConfig
	Channels []model.Channel
	Metrics  metrics.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:       cfg.DB,
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Channels: cfg.Channels,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}

// MetricsServerConfig contains configuration for the /metrics and /healthz endpoint.
type MetricsServerConfig struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Health   map[string]metrics.HealthFunc
	Logger   *slog.Logger
}

// RunMetricsServer serves metrics until ctx ends.
func RunMetricsServer(ctx context.Context, cfg MetricsServerConfig) error {
	srv := metrics.NewServer(metrics.ServerOptions{
		Addr:     cfg.Addr,
		Gatherer: cfg.Gatherer,
		Health:   cfg.Health,
		Logger:   cfg.Logger,
	})
	return srv.Run(ctx)
}
