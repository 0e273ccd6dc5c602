// Package slack posts delivery failure alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/academic360/notifier/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// NotificationURLPrefix links alerts to an admin view of the notification.
	NotificationURLPrefix string
}

// Client delivers failure alerts to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	linkPrefix string
	poster     notify.Poster
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   notify.Fallback(strings.TrimSpace(cfg.Username), "notifier"),
		linkPrefix: strings.TrimSpace(cfg.NotificationURLPrefix),
		poster:     notify.Poster{Name: "slack webhook", Client: hc, RetryLimit: cfg.RetryLimit},
	}, nil
}

// SendDeliveryFailure posts a formatted message to Slack.
func (c *Client) SendDeliveryFailure(ctx context.Context, payload notify.DeliveryFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return c.poster.Post(ctx, c.webhookURL, body)
}

func (c *Client) formatMessage(payload notify.DeliveryFailurePayload) map[string]any {
	var text strings.Builder

	text.WriteString("*Notification delivery failed*")
	if payload.Channel != "" {
		text.WriteString(" (")
		text.WriteString(payload.Channel)
		text.WriteByte(')')
	}
	text.WriteByte('\n')

	kind := "retries exhausted"
	if payload.Permanent {
		kind = "permanent"
	}
	fields := [][2]string{
		{"Severity", notify.Fallback(payload.Severity, notify.SeverityCritical)},
		{"Notification", c.notificationValue(payload.NotificationID)},
		{"Job", idString(payload.JobID)},
		{"User", idString(payload.UserID)},
		{"Attempts", strconv.Itoa(payload.Attempts)},
		{"Failure", kind},
		{"Error class", payload.ErrorClass},
		{"Reason", escape(payload.Reason)},
	}
	for _, f := range fields {
		appendField(&text, f[0], f[1])
	}

	if len(payload.Metadata) > 0 {
		text.WriteString("• Metadata:\n")
		for _, k := range slices.Sorted(maps.Keys(payload.Metadata)) {
			fmt.Fprintf(&text, "    • %s: %s\n", k, escape(payload.Metadata[k]))
		}
	}

	ts := payload.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	text.WriteString("• Timestamp: ")
	text.WriteString(ts.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func (c *Client) notificationValue(id int64) string {
	s := idString(id)
	if s == "" || c.linkPrefix == "" {
		return s
	}
	u, err := url.Parse(c.linkPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s
	}
	link, err := url.JoinPath(u.String(), s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("<%s|%s>", link, s)
}

func idString(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(value string) string {
	return slackEscaper.Replace(value)
}

func appendField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}
