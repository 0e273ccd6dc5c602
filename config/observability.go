package config

import (
	"strings"
	"time"
)

const (
	defaultMetricsAddr    = ":9090"
	defaultAlertSource    = "notifier"
	defaultAlertComponent = "delivery-engine"
	defaultAlertTimeout   = 5 * time.Second
)

// ObservabilityConfig holds the Prometheus endpoint and the alerts raised when a
// notification fails terminally.
type ObservabilityConfig struct {
	Metrics MetricsConfig
	Alerts  FailureAlertsConfig
}

// Sanitize applies guardrails to both halves.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Alerts.Sanitize()
}

// MetricsConfig controls the /metrics listener and the metric name prefix.
type MetricsConfig struct {
	Addr      string `env:"METRICS_ADDR"      envDefault:":9090"`
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"notifier"`
}

// Sanitize restores defaults for blank values.
func (c *MetricsConfig) Sanitize() {
	c.Addr = orDefault(c.Addr, defaultMetricsAddr)
	c.Namespace = orDefault(c.Namespace, defaultAlertSource)
}

// FailureAlertsConfig selects where terminal delivery failures are reported.
// Sinks without credentials are switched off during Sanitize.
type FailureAlertsConfig struct {
	Enabled    bool                 `env:"FAILURE_ALERTS_ENABLED"     envDefault:"false"`
	Timeout    time.Duration        `env:"FAILURE_ALERTS_TIMEOUT"     envDefault:"5s"`
	RetryLimit int                  `env:"FAILURE_ALERTS_RETRY_LIMIT" envDefault:"3"`
	Slack      SlackAlertConfig     `envPrefix:"FAILURE_ALERTS_SLACK_"`
	PagerDuty  PagerDutyAlertConfig `envPrefix:"FAILURE_ALERTS_PAGERDUTY_"`
}

// Sanitize normalises values and disables sinks that cannot post.
func (c *FailureAlertsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultAlertTimeout
	}
	c.RetryLimit = max(c.RetryLimit, 0)

	c.Slack.sanitize()
	c.PagerDuty.sanitize()

	c.Slack.Enabled = c.Enabled && c.Slack.Enabled && c.Slack.WebhookURL != ""
	c.PagerDuty.Enabled = c.Enabled && c.PagerDuty.Enabled && c.PagerDuty.RoutingKey != ""
}

// SlackAlertConfig posts failures to an incoming webhook.
type SlackAlertConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"notifier"`
	// NotificationURLPrefix links alerts to an admin view, e.g. https://admin.example.com/notifications.
	NotificationURLPrefix string `env:"NOTIFICATION_URL_PREFIX"`
}

func (c *SlackAlertConfig) sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	c.Username = orDefault(c.Username, defaultAlertSource)
	c.NotificationURLPrefix = strings.TrimRight(strings.TrimSpace(c.NotificationURLPrefix), "/")
}

// PagerDutyAlertConfig triggers Events API v2 incidents.
type PagerDutyAlertConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"notifier"`
	Component  string `env:"COMPONENT"   envDefault:"delivery-engine"`
}

func (c *PagerDutyAlertConfig) sanitize() {
	c.RoutingKey = strings.TrimSpace(c.RoutingKey)
	c.Source = orDefault(c.Source, defaultAlertSource)
	c.Component = orDefault(c.Component, defaultAlertComponent)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
