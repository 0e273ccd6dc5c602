// Package pagerduty raises delivery failure incidents through the Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/academic360/notifier/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint (tests).
	Endpoint string
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	poster     notify.Poster
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
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
		routingKey: key,
		source:     notify.Fallback(strings.TrimSpace(cfg.Source), "notifier"),
		component:  notify.Fallback(strings.TrimSpace(cfg.Component), "delivery-engine"),
		endpoint:   notify.Fallback(strings.TrimSpace(cfg.Endpoint), APIEndpoint),
		poster:     notify.Poster{Name: "pagerduty api", Client: hc, RetryLimit: cfg.RetryLimit},
	}, nil
}

// SendDeliveryFailure submits a trigger event to PagerDuty.
func (c *Client) SendDeliveryFailure(ctx context.Context, payload notify.DeliveryFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return c.poster.Post(ctx, c.endpoint, body)
}

func (c *Client) buildEvent(payload notify.DeliveryFailurePayload) map[string]any {
	severity := notify.Fallback(strings.ToLower(payload.Severity), notify.SeverityCritical)

	occurredAt := payload.OccurredAt.UTC()
	if payload.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"job_id":          payload.JobID,
		"notification_id": payload.NotificationID,
		"user_id":         payload.UserID,
		"channel":         payload.Channel,
		"attempts":        payload.Attempts,
		"permanent":       payload.Permanent,
		"reason":          payload.Reason,
		"error_class":     payload.ErrorClass,
	}
	for k, v := range payload.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		// One incident per notification, however many jobs retried it.
		"dedup_key": fmt.Sprintf("notification:%d", payload.NotificationID),
		"payload": map[string]any{
			"summary": fmt.Sprintf("%s notification %d failed after %d attempt(s)",
				notify.Fallback(payload.Channel, "unknown"), payload.NotificationID, payload.Attempts),
			"severity":       severity,
			"source":         c.source,
			"component":      c.component,
			"timestamp":      occurredAt.Format(time.RFC3339),
			"custom_details": custom,
		},
	}
}
