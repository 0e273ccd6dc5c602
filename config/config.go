package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/academic360/notifier/internal/domain/model"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and cache configuration
//   - delivery.go: Routing, retry and per-channel worker configuration
//   - providers.go: Delivery provider credentials
//   - services.go: Service mode and reaper configuration
//   - observability.go: Metrics and failure alerts
type AppConfig struct {
	// Environment selects recipient routing: development, staging or production.
	Environment model.Environment `env:"RUNTIME_ENVIRONMENT" envDefault:"development"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"whatsapp-worker,reaper"`

	// Delivery holds settings shared by every channel worker.
	Delivery DeliveryConfig

	// Per-channel worker configuration.
	WhatsApp ChannelConfig `envPrefix:"WHATSAPP_"`
	Email    ChannelConfig `envPrefix:"EMAIL_"`
	SMS      ChannelConfig `envPrefix:"SMS_"`

	// Providers configuration
	Providers ProvidersConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Defaults returns an AppConfig carrying every envDefault tag plus the per-channel
// defaults that struct tags cannot express. The process environment is not read;
// LoadConfig parses it on top of this value.
func Defaults() AppConfig {
	cfg := AppConfig{
		WhatsApp: DefaultChannelConfig(model.ChannelWhatsApp),
		Email:    DefaultChannelConfig(model.ChannelEmail),
		SMS:      DefaultChannelConfig(model.ChannelSMS),
	}
	// An empty, non-nil Environment makes env apply only the tag defaults.
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config: invalid envDefault tag: %v", err))
	}
	return cfg
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Delivery.Sanitize()
	c.WhatsApp.Sanitize(model.ChannelWhatsApp)
	c.Email.Sanitize(model.ChannelEmail)
	c.SMS.Sanitize(model.ChannelSMS)
	c.Providers.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot be repaired by Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if !c.Environment.Valid() {
		errs = append(errs, fmt.Errorf("invalid RUNTIME_ENVIRONMENT %q", c.Environment))
	}

	services, err := c.GetEnabledServices()
	if err != nil {
		errs = append(errs, err)
	}
	for _, ch := range model.Channels() {
		if !services[WorkerService(ch)] {
			continue
		}
		errs = append(errs, c.validateChannel(ch)...)
	}

	return errors.Join(errs...)
}

func (c *AppConfig) validateChannel(ch model.Channel) []error {
	var errs []error
	settings := c.Channel(ch)

	// Development and staging route through the developer address.
	if c.Environment != model.EnvProduction || c.Delivery.HonorDevOnly {
		if c.Delivery.DeveloperAddress(ch) == "" {
			errs = append(errs, fmt.Errorf("%s worker requires a developer address in %s", ch, c.Environment))
		}
	}
	if err := c.Providers.validate(ch, settings.Provider); err != nil {
		errs = append(errs, err)
	}
	// A full staging fan-out must fit in one lease so a missed renewal cannot hand the
	// job to another worker halfway through the staff list.
	if c.Environment == model.EnvStaging {
		fanout := time.Duration(c.Delivery.StagingRecipientLimit) * settings.RateDelay()
		if c.Delivery.ClaimLease < fanout {
			errs = append(errs, fmt.Errorf(
				"CLAIM_LEASE %s is shorter than a full %s staging fan-out (%d recipients x %s)",
				c.Delivery.ClaimLease, ch, c.Delivery.StagingRecipientLimit, settings.RateDelay()))
		}
	}
	return errs
}

// Channel returns the worker settings for ch.
func (c *AppConfig) Channel(ch model.Channel) ChannelConfig {
	switch ch {
	case model.ChannelWhatsApp:
		return c.WhatsApp
	case model.ChannelEmail:
		return c.Email
	case model.ChannelSMS:
		return c.SMS
	}
	return ChannelConfig{}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}

// IsMetricsEnabled returns true if the metrics endpoint is enabled.
func (c *AppConfig) IsMetricsEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeMetrics]
}

// EnabledChannels returns the channels whose worker service is enabled, in a stable order.
func (c *AppConfig) EnabledChannels() []model.Channel {
	services, err := c.GetEnabledServices()
	if err != nil {
		return nil
	}
	var out []model.Channel
	for _, ch := range model.Channels() {
		if services[WorkerService(ch)] {
			out = append(out, ch)
		}
	}
	return out
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
