package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/job"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
	obserrors "github.com/academic360/notifier/internal/observability/errors"
	"github.com/academic360/notifier/internal/observability/metrics"
	"github.com/academic360/notifier/internal/observability/notify"
	"github.com/academic360/notifier/internal/service/failurenotifier"
)

// defaultOutcomeWriteTimeout bounds terminal writes that outlive a canceled worker context.
const defaultOutcomeWriteTimeout = 10 * time.Second

// OutcomeManagerOptions groups dependencies for OutcomeManager.
type OutcomeManagerOptions struct {
	Queue   core.JobQueue   // Required: job queue
	Policy  job.RetryPolicy // Required: retry ceiling
	Backoff job.Backoff     // Optional: zero value retries on the next poll
	Clock   clock.Clock     // Optional: defaults to the system clock
	// FailureNotifier receives terminal failures. Optional.
	FailureNotifier *failurenotifier.Service
	// WriteTimeout bounds each queue write. Defaults to 10s.
	WriteTimeout time.Duration
	Logger       *slog.Logger // Optional: structured logger
}

// OutcomeManager records the result of a delivery attempt.
type OutcomeManager struct {
	queue        core.JobQueue
	policy       job.RetryPolicy
	backoff      job.Backoff
	clock        clock.Clock
	failures     *failurenotifier.Service
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewOutcomeManager constructs an OutcomeManager.
func NewOutcomeManager(opts OutcomeManagerOptions) (*OutcomeManager, error) {
	if opts.Queue == nil {
		return nil, errors.New("JobQueue is required")
	}
	if opts.Policy.MaxRetries < 1 {
		return nil, errors.New("max retries must be at least 1")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = defaultOutcomeWriteTimeout
	}

	return &OutcomeManager{
		queue:        opts.Queue,
		policy:       opts.Policy,
		backoff:      opts.Backoff,
		clock:        clock.OrReal(opts.Clock),
		failures:     opts.FailureNotifier,
		writeTimeout: timeout,
		logger:       logger.With("component", "outcome_manager"),
	}, nil
}

// MaxRetries returns the retry ceiling applied to failures.
func (m *OutcomeManager) MaxRetries() int { return m.policy.MaxRetries }

// Exhausted reports whether j has no retries left. A job reaches this state only when
// claims on it kept lapsing without an outcome.
func (m *OutcomeManager) Exhausted(j *model.Job) bool {
	return j.RetryAttempts >= m.policy.MaxRetries
}

// writeContext detaches from ctx cancellation so a completed send is still recorded
// during shutdown.
func (m *OutcomeManager) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
}

// Succeeded marks j done and its notification SENT. The returned outcome is
// metrics.OutcomeLostClaim when owner no longer holds the job.
func (m *OutcomeManager) Succeeded(ctx context.Context, j *model.Job, owner string) (string, error) {
	return m.complete(ctx, j, owner, metrics.OutcomeSent)
}

// Skipped marks j done without delivery because its notification is already terminal.
func (m *OutcomeManager) Skipped(ctx context.Context, j *model.Job, owner string) (string, error) {
	return m.complete(ctx, j, owner, metrics.OutcomeSkipped)
}

func (m *OutcomeManager) complete(ctx context.Context, j *model.Job, owner, outcome string) (string, error) {
	wctx, cancel := m.writeContext(ctx)
	defer cancel()

	ok, err := m.queue.Complete(wctx, core.FinishParams{
		JobID:          j.ID,
		NotificationID: j.NotificationID,
		Owner:          owner,
		Attempts:       j.RetryAttempts,
	})
	if err != nil {
		return "", err
	}
	if !ok {
		m.lostClaim(ctx, j, owner, "complete")
		return metrics.OutcomeLostClaim, nil
	}
	return outcome, nil
}

// Failed applies the retry policy to cause. Retryable failures under the ceiling are
// rescheduled; permanent or exhausted ones mark j failed and alert operators.
func (m *OutcomeManager) Failed(ctx context.Context, j *model.Job, owner string, cause error) (string, error) {
	permanent := apperrors.IsPermanent(cause)
	decision := m.policy.Decide(j.RetryAttempts, permanent)
	reason := failureReason(cause)

	wctx, cancel := m.writeContext(ctx)
	defer cancel()

	if !decision.Terminal() {
		next := m.backoff.NextAttemptAt(m.clock.Now(), decision.Attempts)
		ok, err := m.queue.RecordRetry(wctx, core.RetryParams{
			JobID:         j.ID,
			Owner:         owner,
			Attempts:      decision.Attempts,
			NextAttemptAt: next,
			Reason:        reason,
		})
		if err != nil {
			return "", err
		}
		if !ok {
			m.lostClaim(ctx, j, owner, "retry")
			return metrics.OutcomeLostClaim, nil
		}
		m.logger.WarnContext(ctx, "delivery attempt failed, will retry",
			"job_id", j.ID,
			"notification_id", j.NotificationID,
			"channel", j.Channel,
			"attempts", decision.Attempts,
			"max_retries", m.policy.MaxRetries,
			"next_attempt_at", next,
			"error", cause,
		)
		return metrics.OutcomeRetry, nil
	}

	ok, err := m.queue.Fail(wctx, core.FinishParams{
		JobID:          j.ID,
		NotificationID: j.NotificationID,
		Owner:          owner,
		Attempts:       decision.Attempts,
		Reason:         reason,
	})
	if err != nil {
		return "", err
	}
	if !ok {
		m.lostClaim(ctx, j, owner, "fail")
		return metrics.OutcomeLostClaim, nil
	}

	m.logger.ErrorContext(ctx, "notification failed",
		"job_id", j.ID,
		"notification_id", j.NotificationID,
		"channel", j.Channel,
		"attempts", decision.Attempts,
		"outcome", string(decision.Outcome),
		"error", cause,
	)
	m.alert(wctx, j, decision, reason, cause)

	if decision.Outcome == job.OutcomePermanent {
		return metrics.OutcomePermanent, nil
	}
	return metrics.OutcomeFailed, nil
}

func (m *OutcomeManager) alert(ctx context.Context, j *model.Job, d job.RetryDecision, reason string, cause error) {
	if !m.failures.Enabled() {
		return
	}
	m.failures.NotifyDeliveryFailure(ctx, notify.DeliveryFailurePayload{
		JobID:          j.ID,
		NotificationID: j.NotificationID,
		UserID:         j.Notification.UserID,
		Channel:        string(j.Channel),
		Attempts:       d.Attempts,
		Permanent:      d.Outcome == job.OutcomePermanent,
		Reason:         reason,
		ErrorClass:     obserrors.Classify(cause),
		OccurredAt:     m.clock.Now(),
	})
}

func (m *OutcomeManager) lostClaim(ctx context.Context, j *model.Job, owner, op string) {
	m.logger.WarnContext(ctx, "claim lost before outcome was recorded",
		"job_id", j.ID,
		"notification_id", j.NotificationID,
		"owner", owner,
		"op", op,
	)
}

func failureReason(err error) string {
	if err == nil {
		return "unknown error"
	}
	reason := strings.TrimSpace(err.Error())
	if reason == "" {
		reason = "unknown error"
	}
	return job.TruncateReason(reason)
}
