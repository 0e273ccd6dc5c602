package jobrunner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/adapters/delivery/interakt"
	"github.com/academic360/notifier/internal/adapters/delivery/logsender"
	"github.com/academic360/notifier/internal/adapters/delivery/postmark"
	"github.com/academic360/notifier/internal/adapters/delivery/sns"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
)

// NewDeliveryClient builds the provider client configured for ch.
//
//nolint:ireturn // the worker depends only on the DeliveryClient port.
func NewDeliveryClient(ctx context.Context, ch model.Channel, cfg *config.AppConfig, logger *slog.Logger) (core.DeliveryClient, error) {
	provider := cfg.Channel(ch).Provider
	p := cfg.Providers

	switch {
	case provider == config.ProviderLog:
		return logsender.New(ch, logger), nil
	case ch == model.ChannelWhatsApp && provider == config.ProviderInterakt:
		c, err := interakt.NewClient(interakt.Config{
			APIKey:       p.Interakt.APIKey,
			Endpoint:     p.Interakt.Endpoint,
			CountryCode:  p.Interakt.CountryCode,
			LanguageCode: p.Interakt.LanguageCode,
			Timeout:      p.Interakt.Timeout,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case ch == model.ChannelEmail && provider == config.ProviderPostmark:
		c, err := postmark.NewClient(postmark.Config{
			ServerToken:   p.Postmark.ServerToken,
			From:          p.Postmark.From,
			ReplyTo:       p.Postmark.ReplyTo,
			MessageStream: p.Postmark.MessageStream,
			Timeout:       p.Postmark.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case ch == model.ChannelSMS && provider == config.ProviderSNS:
		c, err := sns.NewClient(ctx, sns.Config{
			Region:   p.SNS.Region,
			SenderID: p.SNS.SenderID,
			SMSType:  p.SNS.SMSType,
			Endpoint: p.SNS.Endpoint,
			Timeout:  p.SNS.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("provider %q is not available for %s", provider, ch)
}
