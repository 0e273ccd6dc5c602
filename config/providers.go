package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/academic360/notifier/internal/domain/model"
)

// ProvidersConfig holds credentials for the delivery providers.
type ProvidersConfig struct {
	Interakt InteraktConfig `envPrefix:"INTERAKT_"`
	Postmark PostmarkConfig `envPrefix:"POSTMARK_"`
	SNS      SNSConfig      `envPrefix:"SNS_"`
}

// InteraktConfig configures the WhatsApp provider.
type InteraktConfig struct {
	APIKey string `env:"API_KEY"`
	// Endpoint is the public message API.
	Endpoint string `env:"ENDPOINT" envDefault:"https://api.interakt.ai/v1/public/message/"`
	// CountryCode is assumed for numbers without one.
	CountryCode  string        `env:"COUNTRY_CODE"  envDefault:"+91"`
	LanguageCode string        `env:"LANGUAGE_CODE" envDefault:"en"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"15s"`
}

// PostmarkConfig configures the email provider.
type PostmarkConfig struct {
	ServerToken   string        `env:"SERVER_TOKEN"`
	From          string        `env:"FROM"`
	ReplyTo       string        `env:"REPLY_TO"`
	MessageStream string        `env:"MESSAGE_STREAM" envDefault:"outbound"`
	Timeout       time.Duration `env:"TIMEOUT"        envDefault:"15s"`
}

// SNSConfig configures the SMS provider. Credentials come from the default AWS chain.
type SNSConfig struct {
	Region   string `env:"REGION" envDefault:"ap-south-1"`
	SenderID string `env:"SENDER_ID"`
	// SMSType is Transactional or Promotional.
	SMSType string `env:"SMS_TYPE" envDefault:"Transactional"`
	// Endpoint overrides the service endpoint (LocalStack).
	Endpoint string        `env:"ENDPOINT"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"15s"`
}

// Sanitize trims provider settings.
func (p *ProvidersConfig) Sanitize() {
	p.Interakt.APIKey = strings.TrimSpace(p.Interakt.APIKey)
	p.Interakt.Endpoint = strings.TrimSpace(p.Interakt.Endpoint)
	if p.Interakt.LanguageCode = strings.TrimSpace(p.Interakt.LanguageCode); p.Interakt.LanguageCode == "" {
		p.Interakt.LanguageCode = "en"
	}
	p.Postmark.ServerToken = strings.TrimSpace(p.Postmark.ServerToken)
	p.Postmark.From = strings.TrimSpace(p.Postmark.From)
	if p.SNS.SMSType != "Promotional" {
		p.SNS.SMSType = "Transactional"
	}
	for _, d := range []*time.Duration{&p.Interakt.Timeout, &p.Postmark.Timeout, &p.SNS.Timeout} {
		if *d <= 0 {
			*d = 15 * time.Second
		}
	}
}

func (p *ProvidersConfig) validate(ch model.Channel, provider string) error {
	switch {
	case provider == ProviderLog:
		return nil
	case ch == model.ChannelWhatsApp && provider == ProviderInterakt:
		if p.Interakt.APIKey == "" {
			return errors.New("INTERAKT_API_KEY is required for the interakt provider")
		}
		return nil
	case ch == model.ChannelEmail && provider == ProviderPostmark:
		if p.Postmark.ServerToken == "" || p.Postmark.From == "" {
			return errors.New("POSTMARK_SERVER_TOKEN and POSTMARK_FROM are required for the postmark provider")
		}
		return nil
	case ch == model.ChannelSMS && provider == ProviderSNS:
		if strings.TrimSpace(p.SNS.Region) == "" {
			return errors.New("SNS_REGION is required for the sns provider")
		}
		return nil
	}
	return fmt.Errorf("provider %q is not available for %s", provider, ch)
}
