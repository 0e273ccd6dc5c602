package metrics

import (
	"time"

	obserrors "github.com/academic360/notifier/internal/observability/errors"
)

// Outcome labels recorded per processed job.
const (
	OutcomeSent      = "sent"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
	OutcomePermanent = "permanent"
	OutcomeSkipped   = "skipped"
	OutcomeLostClaim = "lost_claim"
)

// DeliveryMetric captures one job outcome for metric emission.
type DeliveryMetric struct {
	Channel  string
	Outcome  string
	Duration time.Duration
	Err      error
}

// EmitDeliveryOutcome emits the standard per-job counters and timings.
func EmitDeliveryOutcome(sink Sink, in DeliveryMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"channel":     in.Channel,
		"outcome":     in.Outcome,
		"error_class": "",
	}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("delivery.jobs", 1, tags)
	if in.Duration > 0 {
		sink.Timing("delivery.job_duration", in.Duration, map[string]string{
			"channel": in.Channel,
			"outcome": in.Outcome,
		})
	}
}

// EmitSend records a single provider call.
func EmitSend(sink Sink, channel string, ok bool, elapsed time.Duration) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if !ok {
		result = ResultError
	}
	tags := map[string]string{"channel": channel, "result": result}
	sink.Count("delivery.sends", 1, tags)
	sink.Timing("delivery.send_duration", elapsed, CloneTags(tags))
}
