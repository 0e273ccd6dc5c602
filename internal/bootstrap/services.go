package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/data"
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/observability/metrics"
	"github.com/academic360/notifier/internal/observability/notify/pagerduty"
	"github.com/academic360/notifier/internal/observability/notify/slack"
	"github.com/academic360/notifier/internal/service"
	"github.com/academic360/notifier/internal/service/failurenotifier"
)

const (
	shutdownWaitTimeout = 15 * time.Second
	templateCachePrefix = "notifier:"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Enqueue       *service.EnqueueService
	Cache         core.CacheRepository
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     metrics.Sink
	Registry        *prometheus.Registry
	MetricsConfig   config.MetricsConfig
	FailureNotifier *failurenotifier.Service
	AlertsConfig    config.FailureAlertsConfig
}

// ServiceDeps contains dependencies for creating services.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	Clock       clock.Clock
}

// NewServices creates the shared services used by every background service.
func NewServices(deps *ServiceDeps) ServiceContainer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		defaults := config.Defaults()
		defaults.Sanitize()
		cfg = &defaults
	}

	container := ServiceContainer{
		Observability: buildObservability(logger, cfg.Observability, cfg.Environment),
	}

	if deps.RedisClient != nil && cfg.Cache.Enabled {
		container.Cache = data.NewRedisCacheRepo(deps.RedisClient, templateCachePrefix)
	}

	if deps.DB != nil {
		// A nil enqueuer is the only construction error, so it cannot fail here.
		enqueue, err := service.NewEnqueueService(service.EnqueueServiceOptions{
			Enqueuer: data.NewEnqueueRepo(deps.DB, clock.OrReal(deps.Clock)),
			Metrics:  container.Observability.MetricsSink,
			Logger:   logger,
		})
		if err != nil {
			logger.Error("failed to initialise enqueue service", "error", err)
		}
		container.Enqueue = enqueue
	}

	return container
}

func buildObservability(
	logger *slog.Logger,
	cfg config.ObservabilityConfig,
	env model.Environment,
) ObservabilityContainer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return ObservabilityContainer{
		MetricsSink: metrics.NewPrometheusSink(metrics.PrometheusConfig{
			Namespace:  cfg.Metrics.Namespace,
			Registerer: registry,
			Logger:     logger,
		}),
		Registry:        registry,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(logger, cfg.Alerts, env),
		AlertsConfig:    cfg.Alerts,
	}
}

func buildFailureNotifier(
	logger *slog.Logger,
	cfg config.FailureAlertsConfig,
	env model.Environment,
) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger:      baseLogger.With("component", "failure_notifier"),
			Environment: string(env),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:            cfg.Slack.WebhookURL,
			Channel:               cfg.Slack.Channel,
			Username:              cfg.Slack.Username,
			Timeout:               cfg.Timeout,
			RetryLimit:            cfg.RetryLimit,
			NotificationURLPrefix: cfg.Slack.NotificationURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:      baseLogger.With("component", "failure_notifier"),
		Sinks:       sinks,
		Environment: string(env),
		Timeout:     cfg.Timeout,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(ctx context.Context) error
}

func newDeliveryWorkerBackgroundService(cfg *ServiceOrchestrationConfig, ch model.Channel) backgroundService {
	return backgroundService{
		mode: config.WorkerService(ch),
		name: string(ch) + " worker",
		start: func(ctx context.Context) error {
			return RunDeliveryWorker(ctx, DeliveryWorkerConfig{
				DB:              cfg.DB,
				Channel:         ch,
				Config:          cfg.Config,
				Logger:          cfg.Logger,
				Cache:           cfg.Services.Cache,
				Metrics:         cfg.Services.Observability.MetricsSink,
				FailureNotifier: cfg.Services.Observability.FailureNotifier,
			})
		},
	}
}

func newReaperBackgroundService(cfg *ServiceOrchestrationConfig) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			return RunReaper(ctx, ReaperConfig{
				DB:       cfg.DB,
				Logger:   cfg.Logger,
				Config:   cfg.Config.Reaper,
				Channels: model.Channels(),
				Metrics:  cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newMetricsBackgroundService(cfg *ServiceOrchestrationConfig) backgroundService {
	return backgroundService{
		mode: config.ServiceModeMetrics,
		name: "metrics server",
		start: func(ctx context.Context) error {
			return RunMetricsServer(ctx, MetricsServerConfig{
				Addr:     cfg.Services.Observability.MetricsConfig.Addr,
				Gatherer: cfg.Services.Observability.Registry,
				Health:   healthChecks(cfg.DB, cfg.RedisClient),
				Logger:   cfg.Logger,
			})
		},
	}
}

func healthChecks(db *sql.DB, redisClient redis.UniversalClient) map[string]metrics.HealthFunc {
	checks := map[string]metrics.HealthFunc{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig) []backgroundService {
	if cfg == nil {
		return nil
	}
	services := make([]backgroundService, 0, len(model.Channels())+2)
	for _, ch := range model.Channels() {
		services = append(services, newDeliveryWorkerBackgroundService(cfg, ch))
	}
	return append(services,
		newReaperBackgroundService(cfg),
		newMetricsBackgroundService(cfg),
	)
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServices(ctx, serviceGroup{
		enabled:     enabledServices,
		services:    buildBackgroundServices(cfg),
		logger:      cfg.Logger,
		waitTimeout: shutdownWaitTimeout,
	})
}

// serviceGroup runs the enabled background services until ctx ends or one fails.
type serviceGroup struct {
	enabled     map[config.ServiceMode]bool
	services    []backgroundService
	logger      *slog.Logger
	waitTimeout time.Duration
}

// errShutdownTimeout is returned when services outlive the drain window.
var errShutdownTimeout = errors.New("timeout waiting for services to stop")

func runServices(ctx context.Context, sg serviceGroup) error {
	g, gctx := errgroup.WithContext(ctx)

	started := 0
	for _, svc := range sg.services {
		if !sg.enabled[svc.mode] {
			continue
		}
		started++
		g.Go(func() error {
			err := svc.start(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			sg.logger.Info(svc.name + " stopped")
			return nil
		})
		sg.logger.InfoContext(ctx, "background service started", "service", svc.name, "mode", svc.mode)
	}
	if started == 0 {
		return errors.New("no services enabled")
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-gctx.Done():
	}

	if ctx.Err() != nil {
		sg.logger.Info("shutting down services...")
	}

	select {
	case err := <-done:
		if err != nil {
			sg.logger.Error("service error", "error", err)
		}
		return err
	case <-time.After(sg.waitTimeout):
		sg.logger.Warn(errShutdownTimeout.Error())
		return errShutdownTimeout
	}
}
