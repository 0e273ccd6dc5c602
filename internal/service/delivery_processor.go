package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/observability/metrics"
)

// DeliveryProcessorOptions groups dependencies for DeliveryProcessor.
type DeliveryProcessorOptions struct {
	Channel    model.Channel       // Required: channel the processor serves
	Templates  *TemplateResolver   // Required
	Recipients *RecipientResolver  // Required
	Client     core.DeliveryClient // Required: provider client for Channel
	Outcomes   *OutcomeManager     // Required
	Clock      clock.Clock         // Optional: defaults to the system clock
	// RateDelay is slept after every provider call.
	RateDelay time.Duration
	// Queue renews the claim during long fan-outs. Renewal is off when Queue is nil or
	// Lease is not positive.
	Queue core.JobQueue
	// Lease is the duration each renewal grants; renewal happens once half of it has passed.
	Lease   time.Duration
	Metrics metrics.Sink // Optional: metrics sink
	Logger  *slog.Logger // Optional: structured logger
}

// errClaimLost aborts a fan-out whose claim was recovered by the reaper or another worker.
var errClaimLost = errors.New("claim lost during delivery")

// DeliveryProcessor runs one claimed job through resolution, delivery and outcome recording.
type DeliveryProcessor struct {
	channel    model.Channel
	templates  *TemplateResolver
	recipients *RecipientResolver
	client     core.DeliveryClient
	outcomes   *OutcomeManager
	clock      clock.Clock
	rateDelay  time.Duration
	queue      core.JobQueue
	lease      time.Duration
	metrics    metrics.Sink
	logger     *slog.Logger
}

// NewDeliveryProcessor constructs a DeliveryProcessor.
func NewDeliveryProcessor(opts DeliveryProcessorOptions) (*DeliveryProcessor, error) {
	switch {
	case !opts.Channel.Valid():
		return nil, fmt.Errorf("invalid channel %q", opts.Channel)
	case opts.Templates == nil:
		return nil, errors.New("TemplateResolver is required")
	case opts.Recipients == nil:
		return nil, errors.New("RecipientResolver is required")
	case opts.Client == nil:
		return nil, errors.New("DeliveryClient is required")
	case opts.Outcomes == nil:
		return nil, errors.New("OutcomeManager is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := opts.RateDelay
	if delay < 0 {
		delay = 0
	}
	lease := opts.Lease
	if opts.Queue == nil || lease < 0 {
		lease = 0
	}

	return &DeliveryProcessor{
		channel:    opts.Channel,
		templates:  opts.Templates,
		recipients: opts.Recipients,
		client:     opts.Client,
		outcomes:   opts.Outcomes,
		clock:      clock.OrReal(opts.Clock),
		rateDelay:  delay,
		queue:      opts.Queue,
		lease:      lease,
		metrics:    metrics.OrNop(opts.Metrics),
		logger:     logger.With("component", "delivery_processor", "channel", string(opts.Channel)),
	}, nil
}

// MaxRetries returns the retry ceiling claims on this channel carry.
func (p *DeliveryProcessor) MaxRetries() int { return p.outcomes.MaxRetries() }

// attemptResult is the recorded outcome of one attempt and the delivery error behind it.
type attemptResult struct {
	outcome string
	cause   error
}

// Process delivers j, which owner must have claimed, and records the outcome.
// It returns the metrics outcome label. An error means the outcome was not
// recorded; the claim will lapse and the job becomes eligible again.
func (p *DeliveryProcessor) Process(ctx context.Context, j *model.Job, owner string) (string, error) {
	start := p.clock.Now()

	res, err := p.process(ctx, j, owner)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "failed to record delivery outcome",
				"job_id", j.ID,
				"notification_id", j.NotificationID,
				"error", err,
			)
		}
		return "", err
	}

	metrics.EmitDeliveryOutcome(p.metrics, metrics.DeliveryMetric{
		Channel:  string(p.channel),
		Outcome:  res.outcome,
		Duration: p.clock.Now().Sub(start),
		Err:      res.cause,
	})
	return res.outcome, nil
}

func (p *DeliveryProcessor) process(ctx context.Context, j *model.Job, owner string) (attemptResult, error) {
	if j.Notification.Status.Terminal() {
		p.logger.InfoContext(ctx, "notification already terminal, closing job",
			"job_id", j.ID,
			"notification_id", j.NotificationID,
			"status", string(j.Notification.Status),
		)
		outcome, err := p.outcomes.Skipped(ctx, j, owner)
		return attemptResult{outcome: outcome}, err
	}
	if p.outcomes.Exhausted(j) {
		// Earlier claims lapsed mid-delivery until the ceiling; do not send again.
		cause := errors.New("retries exhausted by expired claims")
		outcome, err := p.outcomes.Failed(ctx, j, owner, cause)
		return attemptResult{outcome: outcome, cause: cause}, err
	}

	sendErr := p.deliver(ctx, j, owner)
	if sendErr == nil {
		outcome, err := p.outcomes.Succeeded(ctx, j, owner)
		return attemptResult{outcome: outcome}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(sendErr, ctxErr) {
		// Interrupted by shutdown: the claim lapses and recovery spends one retry.
		return attemptResult{}, sendErr
	}
	if errors.Is(sendErr, errClaimLost) {
		// The new holder records the outcome; writing here would fail the owner guard anyway.
		p.logger.WarnContext(ctx, "claim lost mid fan-out, abandoning attempt",
			"job_id", j.ID,
			"notification_id", j.NotificationID,
			"owner", owner,
		)
		return attemptResult{outcome: metrics.OutcomeLostClaim}, nil
	}

	outcome, err := p.outcomes.Failed(ctx, j, owner, sendErr)
	return attemptResult{outcome: outcome, cause: sendErr}, err
}

// deliver resolves and sends j to every recipient in order. Any failed send fails the
// whole attempt. The claim is renewed before a send once half the lease has passed.
func (p *DeliveryProcessor) deliver(ctx context.Context, j *model.Job, owner string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during delivery: %v", r)
		}
	}()

	if j.PayloadErr != nil {
		return fmt.Errorf("decode payload: %w", j.PayloadErr)
	}

	resolved, err := p.templates.Resolve(ctx, j)
	if err != nil {
		return err
	}
	recipients, err := p.recipients.Resolve(ctx, j)
	if err != nil {
		return err
	}

	msg := model.Message{
		Channel:      p.channel,
		TemplateName: resolved.TemplateName,
		BodyValues:   resolved.BodyValues,
		MediaURL:     j.Payload.MediaURL(),
		Subject:      j.Payload.Subject(),
		LanguageCode: j.Payload.LanguageCode(),
		SenderID:     j.Payload.SenderID(),
	}

	renewed := p.clock.Now()
	if j.ClaimedAt != nil && j.ClaimedAt.Before(renewed) {
		renewed = *j.ClaimedAt
	}
	for i, rcpt := range recipients {
		if renewed, err = p.renewClaim(ctx, j, owner, renewed); err != nil {
			return err
		}
		msg.Address = rcpt.Address
		sent := p.clock.Now()
		res := p.client.Send(ctx, msg)
		metrics.EmitSend(p.metrics, string(p.channel), res.OK, p.clock.Now().Sub(sent))

		if !res.OK {
			cause := res.Err
			if cause == nil {
				cause = errors.New("provider rejected message")
			}
			return fmt.Errorf("send to %s recipient %d of %d: %w", rcpt.Route, i+1, len(recipients), cause)
		}
		p.logger.DebugContext(ctx, "message sent",
			"job_id", j.ID,
			"notification_id", j.NotificationID,
			"template", resolved.TemplateName,
			"route", string(rcpt.Route),
			"address", maskAddress(rcpt.Address),
			"provider_id", res.ProviderID,
		)

		if err := p.clock.Sleep(ctx, p.rateDelay); err != nil && i < len(recipients)-1 {
			return err
		}
	}
	return nil
}

// renewClaim extends the lease when half of it has passed since last. It returns the
// time of the latest successful renewal. A failed renewal is retried before the next
// send; only a lost claim stops delivery.
func (p *DeliveryProcessor) renewClaim(ctx context.Context, j *model.Job, owner string, last time.Time) (time.Time, error) {
	if p.lease <= 0 {
		return last, nil
	}
	now := p.clock.Now()
	if now.Sub(last) < p.lease/2 {
		return last, nil
	}

	ok, err := p.queue.ExtendClaim(ctx, core.ClaimParams{JobID: j.ID, Owner: owner, Lease: p.lease})
	if err != nil {
		if ctx.Err() != nil {
			return last, ctx.Err()
		}
		p.metrics.Count("delivery.claim_renewals", 1, map[string]string{"channel": string(p.channel), "result": metrics.ResultError})
		p.logger.WarnContext(ctx, "claim renewal failed", "job_id", j.ID, "error", err)
		return last, nil
	}
	if !ok {
		p.metrics.Count("delivery.claim_renewals", 1, map[string]string{"channel": string(p.channel), "result": "lost"})
		return last, errClaimLost
	}
	p.metrics.Count("delivery.claim_renewals", 1, map[string]string{"channel": string(p.channel), "result": metrics.ResultSuccess})
	expires := now.Add(p.lease)
	j.ClaimExpiresAt = &expires
	return now, nil
}

// maskAddress keeps the last four characters of an address for logs.
func maskAddress(addr string) string {
	const keep = 4
	r := []rune(addr)
	if len(r) <= keep {
		return "****"
	}
	return "****" + string(r[len(r)-keep:])
}
