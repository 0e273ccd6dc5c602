// Package sns sends SMS through AWS SNS direct publish.
package sns

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"

	"github.com/academic360/notifier/internal/adapters/delivery"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

const providerName = "sns"

// SMS message attribute names recognised by SNS.
const (
	attrSMSType  = "AWS.SNS.SMS.SMSType"
	attrSenderID = "AWS.SNS.SMS.SenderID"
)

// Publisher is the subset of the SNS API the client needs.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config configures the SMS client.
type Config struct {
	Region   string
	SenderID string
	// SMSType is Transactional or Promotional.
	SMSType string
	// Endpoint overrides the SNS endpoint, e.g. LocalStack.
	Endpoint string
	Timeout  time.Duration
}

// Client delivers SMS. The message text is the template name with {{n}}
// placeholders replaced by body values.
type Client struct {
	api      Publisher
	senderID string
	smsType  string
	timeout  time.Duration
}

var _ core.DeliveryClient = (*Client)(nil)

// NewClient loads the default AWS credential chain and builds an SNS client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return nil, errors.New("sns region is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	api := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewClientWithPublisher(api, cfg), nil
}

// NewClientWithPublisher builds a client around an existing publisher.
func NewClientWithPublisher(api Publisher, cfg Config) *Client {
	smsType := cfg.SMSType
	if smsType != "Promotional" {
		smsType = "Transactional"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		api:      api,
		senderID: strings.TrimSpace(cfg.SenderID),
		smsType:  smsType,
		timeout:  timeout,
	}
}

// Send publishes one SMS. It never retries; the SDK retryer is left to the
// caller's configuration.
func (c *Client) Send(ctx context.Context, msg model.Message) model.DeliveryResult {
	phone := normalisePhone(msg.Address)
	if phone == "" {
		return model.Undelivered(apperrors.Validationf("invalid sms number %q", msg.Address))
	}
	text := delivery.RenderPositional(msg.TemplateName, msg.BodyValues)
	if strings.TrimSpace(text) == "" {
		return model.Undelivered(apperrors.Validation("sms text is empty"))
	}

	attrs := map[string]types.MessageAttributeValue{
		attrSMSType: {DataType: aws.String("String"), StringValue: aws.String(c.smsType)},
	}
	senderID := c.senderID
	if override := strings.TrimSpace(msg.SenderID); override != "" {
		senderID = override
	}
	if senderID != "" {
		attrs[attrSenderID] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(senderID)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(text),
		MessageAttributes: attrs,
	})
	if err != nil {
		return model.Undelivered(classify(err))
	}
	return model.Delivered(aws.ToString(out.MessageId))
}

// classify maps SDK errors: server faults and throttling are transient, client
// faults are rejections.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return delivery.TransportError(providerName, err)
	}
	switch {
	case apiErr.ErrorFault() == smithy.FaultServer,
		strings.Contains(apiErr.ErrorCode(), "Throttl"):
		return apperrors.Wrapf(err, apperrors.ErrCodeTransient, "sns %s", apiErr.ErrorCode())
	default:
		return apperrors.Wrapf(err, apperrors.ErrCodeValidation, "sns rejected message: %s", apiErr.ErrorCode())
	}
}

func normalisePhone(address string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '+':
			return r
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
			return -1
		}
		return 'x'
	}, strings.TrimSpace(address))
	if strings.ContainsRune(out, 'x') || strings.LastIndex(out, "+") > 0 || len(strings.TrimPrefix(out, "+")) < 6 {
		return ""
	}
	return out
}
