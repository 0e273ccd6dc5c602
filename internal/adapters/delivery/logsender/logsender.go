// Package logsender provides a delivery client that logs messages instead of sending them.
package logsender

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
)

// Client logs every message at info level and always reports success.
type Client struct {
	logger *slog.Logger
	seq    atomic.Int64
}

var _ core.DeliveryClient = (*Client)(nil)

// New returns a log-only client for channel.
func New(channel model.Channel, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{logger: logger.With("component", "log_sender", "channel", string(channel))}
}

// Send logs msg.
func (c *Client) Send(ctx context.Context, msg model.Message) model.DeliveryResult {
	id := "log-" + strconv.FormatInt(c.seq.Add(1), 10)
	c.logger.InfoContext(ctx, "message delivered to log",
		"provider_id", id,
		"address", msg.Address,
		"template", msg.TemplateName,
		"body_values", msg.BodyValues,
		"media_url", msg.MediaURL,
	)
	return model.Delivered(id)
}
