package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Payload is the typed notification payload. The common fields apply to every
// channel; exactly one of the channel sections may be set, matching Channel.
type Payload struct {
	Channel Channel `json:"-"`

	// Template overrides the fallback template name when the notification has no template id.
	Template string `json:"template,omitempty"`
	// BodyValues is the explicit fallback body-value list.
	BodyValues []string `json:"body_values,omitempty"`
	// DevOnly asks for delivery to the developer address only. Honoured only when enabled in config.
	DevOnly bool `json:"dev_only,omitempty"`

	WhatsApp *WhatsAppPayload `json:"whatsapp,omitempty"`
	Email    *EmailPayload    `json:"email,omitempty"`
	SMS      *SMSPayload      `json:"sms,omitempty"`
}

// WhatsAppPayload carries WhatsApp-only options.
type WhatsAppPayload struct {
	HeaderMediaURL string `json:"header_media_url,omitempty"`
	LanguageCode   string `json:"language_code,omitempty"`
}

// EmailPayload carries email-only options.
type EmailPayload struct {
	Subject  string `json:"subject,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

// SMSPayload carries SMS-only options.
type SMSPayload struct {
	SenderID string `json:"sender_id,omitempty"`
}

// MediaURL returns the optional media link for the payload's channel.
func (p Payload) MediaURL() string {
	switch p.Channel {
	case ChannelWhatsApp:
		if p.WhatsApp != nil {
			return p.WhatsApp.HeaderMediaURL
		}
	case ChannelEmail:
		if p.Email != nil {
			return p.Email.MediaURL
		}
	case ChannelSMS:
	}
	return ""
}

// Subject returns the email subject, if any.
func (p Payload) Subject() string {
	if p.Email != nil {
		return p.Email.Subject
	}
	return ""
}

// LanguageCode returns the WhatsApp template language override, if any.
func (p Payload) LanguageCode() string {
	if p.WhatsApp != nil {
		return p.WhatsApp.LanguageCode
	}
	return ""
}

// SenderID returns the SMS sender id override, if any.
func (p Payload) SenderID() string {
	if p.SMS != nil {
		return p.SMS.SenderID
	}
	return ""
}

const commonProperties = `
    "template":    {"type": "string", "maxLength": 255},
    "body_values": {"type": "array", "items": {"type": "string"}},
    "dev_only":    {"type": "boolean"}`

var payloadSchemaSources = map[Channel]string{
	ChannelWhatsApp: `{
  "type": "object",
  "additionalProperties": false,
  "properties": {` + commonProperties + `,
    "whatsapp": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "header_media_url": {"type": "string"},
        "language_code":    {"type": "string", "maxLength": 16}
      }
    }
  }
}`,
	ChannelEmail: `{
  "type": "object",
  "additionalProperties": false,
  "properties": {` + commonProperties + `,
    "email": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "subject":   {"type": "string", "maxLength": 998},
        "media_url": {"type": "string"}
      }
    }
  }
}`,
	ChannelSMS: `{
  "type": "object",
  "additionalProperties": false,
  "properties": {` + commonProperties + `,
    "sms": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "sender_id": {"type": "string", "maxLength": 11}
      }
    }
  }
}`,
}

var (
	schemasOnce sync.Once
	schemas     map[Channel]*gojsonschema.Schema
	schemasErr  error
)

func payloadSchema(ch Channel) (*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[Channel]*gojsonschema.Schema, len(payloadSchemaSources))
		for c, src := range payloadSchemaSources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				schemasErr = fmt.Errorf("compile %s payload schema: %w", c, err)
				return
			}
			schemas[c] = s
		}
	})
	if schemasErr != nil {
		return nil, schemasErr
	}
	s, ok := schemas[ch]
	if !ok {
		return nil, fmt.Errorf("no payload schema for channel %q", ch)
	}
	return s, nil
}

// DecodePayload validates raw against the channel's schema and decodes it.
// An empty or null payload decodes to an empty Payload.
func DecodePayload(ch Channel, raw json.RawMessage) (Payload, error) {
	p := Payload{Channel: ch}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, nil
	}

	schema, err := payloadSchema(ch)
	if err != nil {
		return p, err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(trimmed))
	if err != nil {
		return p, fmt.Errorf("payload validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return p, fmt.Errorf("payload validation failed: %s", strings.Join(errs, "; "))
	}

	if err := json.Unmarshal(trimmed, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	p.Channel = ch
	return p, nil
}

// EncodePayload marshals p after checking it against its channel schema.
func EncodePayload(p Payload) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if _, err := DecodePayload(p.Channel, b); err != nil {
		return nil, err
	}
	return b, nil
}
