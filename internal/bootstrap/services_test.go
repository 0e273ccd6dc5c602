package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/domain/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetEnabledServices(t *testing.T) {
	tests := []struct {
		name     string
		services string
		want     []string
	}{
		{name: "default pair", services: "whatsapp-worker,reaper", want: []string{"whatsapp-worker", "reaper"}},
		{name: "stable order", services: "metrics,sms-worker,email-worker", want: []string{"email-worker", "sms-worker", "metrics"}},
		{name: "invalid", services: "scheduler", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{Services: tt.services}
			assert.Equal(t, tt.want, GetEnabledServices(cfg))
		})
	}

	assert.Empty(t, GetEnabledServices(nil))
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))

	cfg := config.Defaults()
	cfg.Services = "reaper,metrics"
	cfg.Environment = model.EnvProduction
	cfg.Sanitize()
	require.NoError(t, ValidateServiceConfig(&cfg))

	cfg.Services = "bogus"
	require.ErrorContains(t, ValidateServiceConfig(&cfg), "invalid service configuration")
}

func TestBuildBackgroundServices(t *testing.T) {
	cfg := &ServiceOrchestrationConfig{Config: &config.AppConfig{}}
	services := buildBackgroundServices(cfg)

	modes := make([]config.ServiceMode, len(services))
	for i, svc := range services {
		modes[i] = svc.mode
		assert.NotNil(t, svc.start, svc.name)
	}
	assert.Equal(t, config.ValidServiceModes(), modes)
	assert.Nil(t, buildBackgroundServices(nil))
}

func TestNewServices(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Defaults()
	cfg.Cache.Enabled = true
	cfg.Sanitize()

	t.Run("wires enqueue and cache", func(t *testing.T) {
		container := NewServices(&ServiceDeps{Config: &cfg, DB: db, RedisClient: client, Logger: quietLogger()})
		assert.NotNil(t, container.Enqueue)
		assert.NotNil(t, container.Cache)
		assert.NotNil(t, container.Observability.MetricsSink)
		assert.NotNil(t, container.Observability.Registry)
		assert.False(t, container.Observability.FailureNotifier.Enabled())
	})

	t.Run("cache disabled", func(t *testing.T) {
		noCache := cfg
		noCache.Cache.Enabled = false
		container := NewServices(&ServiceDeps{Config: &noCache, DB: db, RedisClient: client, Logger: quietLogger()})
		assert.Nil(t, container.Cache)
	})

	t.Run("without infrastructure", func(t *testing.T) {
		container := NewServices(&ServiceDeps{Config: &cfg, Logger: quietLogger()})
		assert.Nil(t, container.Enqueue)
		assert.Nil(t, container.Cache)
	})
}

func TestBuildObservability_RegistersRuntimeCollectors(t *testing.T) {
	obs := buildObservability(quietLogger(), config.ObservabilityConfig{
		Metrics: config.MetricsConfig{Addr: ":0", Namespace: "notifier"},
	}, model.EnvDevelopment)

	obs.MetricsSink.Count("enqueue.requests", 1, map[string]string{"channel": "sms", "result": "success"})

	families, err := obs.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}

func TestBuildFailureNotifier(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc := buildFailureNotifier(quietLogger(), config.FailureAlertsConfig{}, model.EnvProduction)
		assert.False(t, svc.Enabled())
	})

	t.Run("slack and pagerduty", func(t *testing.T) {
		svc := buildFailureNotifier(quietLogger(), config.FailureAlertsConfig{
			Enabled: true,
			Timeout: time.Second,
			Slack: config.SlackAlertConfig{
				Enabled:    true,
				WebhookURL: "https://hooks.slack.example/services/T000/B000/XXX",
				Username:   "notifier",
			},
			PagerDuty: config.PagerDutyAlertConfig{
				Enabled:    true,
				RoutingKey: "routing-key",
				Source:     "notifier",
				Component:  "delivery-engine",
			},
		}, model.EnvProduction)
		assert.True(t, svc.Enabled())
	})
}

func TestHealthChecks(t *testing.T) {
	assert.Empty(t, healthChecks(nil, nil))

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checks := healthChecks(db, client)
	require.Len(t, checks, 2)

	mock.ExpectPing()
	require.NoError(t, checks["postgres"](context.Background()))
	require.NoError(t, checks["redis"](context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func blockingService(mode config.ServiceMode, started *sync.WaitGroup) backgroundService {
	started.Add(1)
	return backgroundService{
		mode: mode,
		name: string(mode),
		start: func(ctx context.Context) error {
			started.Done()
			<-ctx.Done()
			return ctx.Err()
		},
	}
}

func enabled(modes ...config.ServiceMode) map[config.ServiceMode]bool {
	out := make(map[config.ServiceMode]bool, len(modes))
	for _, m := range modes {
		out[m] = true
	}
	return out
}

func TestRunServices_StopsOnCancel(t *testing.T) {
	var started sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runServices(ctx, serviceGroup{
			enabled: enabled(config.ServiceModeWhatsAppWorker, config.ServiceModeReaper),
			services: []backgroundService{
				blockingService(config.ServiceModeWhatsAppWorker, &started),
				blockingService(config.ServiceModeReaper, &started),
			},
			logger:      quietLogger(),
			waitTimeout: time.Second,
		})
	}()

	started.Wait()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("services did not stop")
	}
}

func TestRunServices_FailureCancelsOthers(t *testing.T) {
	var started sync.WaitGroup
	failing := backgroundService{
		mode:  config.ServiceModeEmailWorker,
		name:  "email worker",
		start: func(context.Context) error { return errors.New("provider unreachable") },
	}

	err := runServices(context.Background(), serviceGroup{
		enabled: enabled(config.ServiceModeEmailWorker, config.ServiceModeReaper),
		services: []backgroundService{
			blockingService(config.ServiceModeReaper, &started),
			failing,
		},
		logger:      quietLogger(),
		waitTimeout: time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email worker failed: provider unreachable")
}

func TestRunServices_SkipsDisabled(t *testing.T) {
	ran := false
	disabled := backgroundService{
		mode: config.ServiceModeSMSWorker,
		name: "sms worker",
		start: func(context.Context) error {
			ran = true
			return nil
		},
	}

	err := runServices(context.Background(), serviceGroup{
		enabled:  enabled(config.ServiceModeReaper),
		services: []backgroundService{disabled},
		logger:   quietLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no services enabled")
	assert.False(t, ran)
}

func TestRunServices_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := backgroundService{
		mode: config.ServiceModeMetrics,
		name: "metrics server",
		start: func(context.Context) error {
			<-release
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runServices(ctx, serviceGroup{
		enabled:     enabled(config.ServiceModeMetrics),
		services:    []backgroundService{stuck},
		logger:      quietLogger(),
		waitTimeout: 20 * time.Millisecond,
	})
	require.ErrorIs(t, err, errShutdownTimeout)
}
