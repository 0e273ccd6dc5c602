package config

import (
	"strings"
	"time"

	"github.com/academic360/notifier/internal/domain/job"
	"github.com/academic360/notifier/internal/domain/model"
)

// DeliveryConfig holds routing, template and retry settings shared by every channel.
type DeliveryConfig struct {
	// DeveloperPhone receives whatsapp and sms traffic outside production.
	DeveloperPhone string `env:"DEVELOPER_PHONE"`
	// DeveloperEmail receives email traffic outside production.
	DeveloperEmail string `env:"DEVELOPER_EMAIL"`

	// HonorDevOnly routes payloads flagged dev_only to the developer address in every environment.
	HonorDevOnly bool `env:"HONOR_DEV_ONLY_FLAG" envDefault:"false"`

	// FallbackTemplate names the template for notifications without a template id.
	FallbackTemplate string `env:"FALLBACK_TEMPLATE" envDefault:"generic_alert"`

	// RequireAllPlaceholders retries notifications whose content does not fill every field.
	RequireAllPlaceholders bool `env:"REQUIRE_ALL_PLACEHOLDERS" envDefault:"false"`

	// StagingRecipientLimit caps the staging fan-out.
	StagingRecipientLimit int `env:"STAGING_RECIPIENT_LIMIT" envDefault:"500"`

	// ClaimLease is how long a worker owns a claimed job between renewals. Workers renew
	// once half of it has passed, so it only needs to outlast a single provider call.
	ClaimLease time.Duration `env:"CLAIM_LEASE" envDefault:"5m"`

	// Backoff spaces retry attempts.
	BackoffStrategy job.BackoffStrategy `env:"RETRY_BACKOFF"      envDefault:"fixed"`
	BackoffBase     time.Duration       `env:"RETRY_BACKOFF_BASE" envDefault:"0s"`
	BackoffMax      time.Duration       `env:"RETRY_BACKOFF_MAX"  envDefault:"1h"`
}

// Sanitize applies guardrails to delivery configuration values.
func (d *DeliveryConfig) Sanitize() {
	d.DeveloperPhone = strings.TrimSpace(d.DeveloperPhone)
	d.DeveloperEmail = strings.TrimSpace(d.DeveloperEmail)
	if d.FallbackTemplate = strings.TrimSpace(d.FallbackTemplate); d.FallbackTemplate == "" {
		d.FallbackTemplate = "generic_alert"
	}
	if d.StagingRecipientLimit < 1 {
		d.StagingRecipientLimit = 500
	}
	if d.ClaimLease < job.MinClaimLease {
		d.ClaimLease = job.MinClaimLease
	}
	if d.ClaimLease > job.MaxClaimLease {
		d.ClaimLease = job.MaxClaimLease
	}
	if !d.BackoffStrategy.Valid() {
		d.BackoffStrategy = job.BackoffFixed
	}
	if d.BackoffBase < 0 {
		d.BackoffBase = 0
	}
	if d.BackoffMax < d.BackoffBase {
		d.BackoffMax = d.BackoffBase
	}
}

// Backoff returns the retry spacing policy.
func (d *DeliveryConfig) Backoff() job.Backoff {
	return job.Backoff{Strategy: d.BackoffStrategy, Base: d.BackoffBase, Max: d.BackoffMax}
}

// DeveloperAddress returns the developer fallback for ch.
func (d *DeliveryConfig) DeveloperAddress(ch model.Channel) string {
	switch ch {
	case model.ChannelWhatsApp, model.ChannelSMS:
		return d.DeveloperPhone
	case model.ChannelEmail:
		return d.DeveloperEmail
	}
	return ""
}

// DeveloperAddresses returns the developer fallback per channel, omitting unset ones.
func (d *DeliveryConfig) DeveloperAddresses() map[model.Channel]string {
	out := make(map[model.Channel]string, 3)
	for _, ch := range model.Channels() {
		if addr := d.DeveloperAddress(ch); addr != "" {
			out[ch] = addr
		}
	}
	return out
}

// Provider names accepted per channel.
const (
	ProviderLog      = "log"
	ProviderInterakt = "interakt"
	ProviderPostmark = "postmark"
	ProviderSNS      = "sns"
)

// ChannelConfig is the worker configuration for one channel. Field tags carry no
// defaults; DefaultChannelConfig seeds them before parsing.
type ChannelConfig struct {
	// Provider selects the delivery client.
	Provider string `env:"PROVIDER"`
	// PollMS is the tick interval in milliseconds.
	PollMS int `env:"POLL_MS"`
	// BatchSize is the number of jobs fetched per tick.
	BatchSize int `env:"BATCH_SIZE"`
	// RateDelayMS is slept after every provider call.
	RateDelayMS int `env:"RATE_DELAY_MS"`
	// MaxRetries is the retry ceiling.
	MaxRetries int `env:"MAX_RETRIES"`
}

// DefaultChannelConfig returns the defaults for ch.
func DefaultChannelConfig(ch model.Channel) ChannelConfig {
	c := ChannelConfig{PollMS: 3000, BatchSize: 50, RateDelayMS: 300, MaxRetries: 5}
	switch ch {
	case model.ChannelWhatsApp:
		c.Provider = ProviderInterakt
	case model.ChannelEmail:
		c.Provider = ProviderPostmark
		c.RateDelayMS = 250
	case model.ChannelSMS:
		c.Provider = ProviderSNS
	}
	return c
}

// Sanitize applies guardrails, restoring defaults for unusable values.
func (c *ChannelConfig) Sanitize(ch model.Channel) {
	def := DefaultChannelConfig(ch)
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.PollMS < 100 {
		c.PollMS = def.PollMS
	}
	if c.BatchSize < 1 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchSize > 1000 {
		c.BatchSize = 1000
	}
	if c.RateDelayMS < 0 {
		c.RateDelayMS = 0
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = def.MaxRetries
	}
}

// PollInterval returns PollMS as a duration.
func (c ChannelConfig) PollInterval() time.Duration {
	return time.Duration(c.PollMS) * time.Millisecond
}

// RateDelay returns RateDelayMS as a duration.
func (c ChannelConfig) RateDelay() time.Duration {
	return time.Duration(c.RateDelayMS) * time.Millisecond
}
