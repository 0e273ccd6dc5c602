// Package interakt sends WhatsApp template messages through the Interakt public message API.
package interakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/academic360/notifier/internal/adapters/delivery"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

const providerName = "interakt"

// DefaultEndpoint is the public message API.
const DefaultEndpoint = "https://api.interakt.ai/v1/public/message/"

// Config configures the Interakt client.
type Config struct {
	APIKey   string
	Endpoint string
	// CountryCode is used for numbers that do not carry one, e.g. "+91".
	CountryCode  string
	LanguageCode string
	Timeout      time.Duration
	Client       *http.Client
	Logger       *slog.Logger
}

// Client delivers WhatsApp template messages.
type Client struct {
	apiKey       string
	endpoint     string
	countryCode  string
	languageCode string
	http         *http.Client
	logger       *slog.Logger
}

var _ core.DeliveryClient = (*Client)(nil)

// NewClient builds an Interakt client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("interakt api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	cc := strings.TrimSpace(cfg.CountryCode)
	if cc == "" {
		cc = "+91"
	}
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}

	lang := strings.TrimSpace(cfg.LanguageCode)
	if lang == "" {
		lang = "en"
	}

	return &Client{
		apiKey:       apiKey,
		endpoint:     endpoint,
		countryCode:  cc,
		languageCode: lang,
		http:         hc,
		logger:       logger.With("component", "interakt_client"),
	}, nil
}

type templateBody struct {
	Name         string   `json:"name"`
	LanguageCode string   `json:"languageCode"`
	HeaderValues []string `json:"headerValues,omitempty"`
	BodyValues   []string `json:"bodyValues"`
}

type messageRequest struct {
	CountryCode     string       `json:"countryCode,omitempty"`
	PhoneNumber     string       `json:"phoneNumber,omitempty"`
	FullPhoneNumber string       `json:"fullPhoneNumber,omitempty"`
	Type            string       `json:"type"`
	Template        templateBody `json:"template"`
}

type messageResponse struct {
	Result  bool   `json:"result"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Send posts one template message. It never retries.
func (c *Client) Send(ctx context.Context, msg model.Message) model.DeliveryResult {
	req, err := c.buildRequest(msg)
	if err != nil {
		return model.Undelivered(err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return model.Undelivered(fmt.Errorf("encode interakt request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Undelivered(fmt.Errorf("build interakt request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return model.Undelivered(delivery.TransportError(providerName, err))
	}
	respBody, readErr := delivery.ReadBody(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.DebugContext(ctx, "close interakt response body", "error", closeErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Undelivered(delivery.StatusError(providerName, resp.StatusCode, respBody))
	}
	if readErr != nil {
		return model.Undelivered(delivery.TransportError(providerName, readErr))
	}

	var out messageResponse
	if err := json.Unmarshal([]byte(respBody), &out); err != nil {
		return model.Undelivered(apperrors.Wrapf(err, apperrors.ErrCodeTransient, "decode interakt response"))
	}
	if !out.Result {
		return model.Undelivered(apperrors.Validationf("interakt rejected message: %s", out.Message))
	}
	return model.Delivered(out.ID)
}

func (c *Client) buildRequest(msg model.Message) (messageRequest, error) {
	if strings.TrimSpace(msg.TemplateName) == "" {
		return messageRequest{}, apperrors.Validation("template name is required")
	}

	req := messageRequest{
		Type: "Template",
		Template: templateBody{
			Name:         msg.TemplateName,
			LanguageCode: c.languageCode,
			BodyValues:   msg.BodyValues,
		},
	}
	if lang := strings.TrimSpace(msg.LanguageCode); lang != "" {
		req.Template.LanguageCode = lang
	}
	if req.Template.BodyValues == nil {
		req.Template.BodyValues = []string{}
	}
	if media := strings.TrimSpace(msg.MediaURL); media != "" {
		req.Template.HeaderValues = []string{media}
	}

	cc, phone, full, err := splitPhone(msg.Address, c.countryCode)
	if err != nil {
		return messageRequest{}, err
	}
	req.CountryCode, req.PhoneNumber, req.FullPhoneNumber = cc, phone, full
	return req, nil
}

// splitPhone normalises address into either countryCode+phoneNumber (the configured
// country) or fullPhoneNumber (any other international number).
func splitPhone(address, countryCode string) (cc, phone, full string, err error) {
	digits := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '+':
			return r
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
			return -1
		}
		return 'x'
	}, strings.TrimSpace(address))

	if digits == "" || strings.ContainsRune(digits, 'x') || strings.LastIndex(digits, "+") > 0 {
		return "", "", "", apperrors.Validationf("invalid whatsapp number %q", address)
	}

	switch {
	case strings.HasPrefix(digits, countryCode):
		phone = strings.TrimPrefix(digits, countryCode)
		cc = countryCode
	case strings.HasPrefix(digits, "+"):
		full = strings.TrimPrefix(digits, "+")
	default:
		phone = strings.TrimLeft(digits, "0")
		cc = countryCode
	}

	if phone == "" && full == "" {
		return "", "", "", apperrors.Validationf("invalid whatsapp number %q", address)
	}
	return cc, phone, full, nil
}
