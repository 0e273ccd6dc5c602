// Package postmark sends templated email through Postmark.
package postmark

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/academic360/notifier/internal/adapters/delivery"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

const providerName = "postmark"

// Config configures the Postmark client.
type Config struct {
	ServerToken   string
	From          string
	ReplyTo       string
	MessageStream string
	Timeout       time.Duration
	// BaseURL overrides the API root. Tests point it at httptest.
	BaseURL string
	Client  *http.Client
}

// Client delivers email using Postmark templates. The template alias is the
// resolved template name.
type Client struct {
	api           *postmark.Client
	from          string
	replyTo       string
	messageStream string
}

var _ core.DeliveryClient = (*Client)(nil)

// NewClient builds a Postmark client.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.ServerToken)
	if token == "" {
		return nil, errors.New("postmark server token is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errors.New("postmark sender address is required")
	}

	api := postmark.NewClient(token, "")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cfg.Client != nil {
		api.HTTPClient = cfg.Client
	} else {
		api.HTTPClient = &http.Client{Timeout: timeout}
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		api.BaseURL = base
	}

	stream := strings.TrimSpace(cfg.MessageStream)
	if stream == "" {
		stream = "outbound"
	}

	return &Client{
		api:           api,
		from:          from,
		replyTo:       strings.TrimSpace(cfg.ReplyTo),
		messageStream: stream,
	}, nil
}

// Send delivers one templated email. It never retries.
func (c *Client) Send(ctx context.Context, msg model.Message) model.DeliveryResult {
	to := strings.TrimSpace(msg.Address)
	if to == "" || !strings.Contains(to, "@") {
		return model.Undelivered(apperrors.Validationf("invalid email address %q", msg.Address))
	}
	if strings.TrimSpace(msg.TemplateName) == "" {
		return model.Undelivered(apperrors.Validation("template name is required"))
	}

	resp, err := c.api.SendTemplatedEmail(ctx, postmark.TemplatedEmail{
		TemplateAlias: msg.TemplateName,
		TemplateModel: templateModel(msg),
		From:          c.from,
		To:            to,
		ReplyTo:       c.replyTo,
		Tag:           msg.TemplateName,
		TrackOpens:    true,
		MessageStream: c.messageStream,
	})
	if err != nil {
		return model.Undelivered(delivery.TransportError(providerName, err))
	}
	if resp.ErrorCode > 0 {
		return model.Undelivered(apperrors.Validationf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return model.Delivered(resp.MessageID)
}

// templateModel exposes body values both by position (v1..vN) and as a list.
func templateModel(msg model.Message) map[string]any {
	values := msg.BodyValues
	if values == nil {
		values = []string{}
	}
	m := make(map[string]any, len(values)+3)
	for i, v := range values {
		m[fmt.Sprintf("v%d", i+1)] = v
	}
	m["values"] = values
	if msg.Subject != "" {
		m["subject"] = msg.Subject
	}
	if msg.MediaURL != "" {
		m["media_url"] = msg.MediaURL
	}
	return m
}
