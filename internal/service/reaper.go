package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	obserrors "github.com/academic360/notifier/internal/observability/errors"
	"github.com/academic360/notifier/internal/observability/metrics"
)

// maxReleaseRounds bounds how many batches one pass releases, so a flood of expired
// claims cannot pin the reaper in a single pass.
const maxReleaseRounds = 100

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo   core.ReaperRepository // Required: claim recovery
	Config config.ReaperConfig   // Required: reaper configuration
	// Queue supplies per-channel statistics for depth gauges. Optional.
	Queue core.JobQueue
	// Channels lists the channels to report on. Defaults to every channel.
	Channels []model.Channel
	Clock    clock.Clock  // Optional: defaults to the system clock
	Logger   *slog.Logger // Optional: structured logger
	Metrics  metrics.Sink // Optional: metrics sink
}

// ReaperService recovers jobs left claimed by crashed workers and reports queue depth.
// Jobs are never deleted; terminal rows are the audit trail.
type ReaperService struct {
	repo     core.ReaperRepository
	queue    core.JobQueue
	channels []model.Channel
	config   config.ReaperConfig
	clock    clock.Clock
	logger   *slog.Logger
	metrics  metrics.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	channels := opts.Channels
	if len(channels) == 0 {
		channels = model.Channels()
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", cfg.Interval,
			"batch_size", cfg.BatchSize,
			"channels", channels,
		)
	}

	return &ReaperService{
		repo:     opts.Repo,
		queue:    opts.Queue,
		channels: channels,
		config:   cfg,
		clock:    clock.OrReal(opts.Clock),
		logger:   logger,
		metrics:  opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps instances started together from contending for the recovery lock.
	s.waitWithJitter(ctx)

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial pass")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C():
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "pass")
			}
		}
	}
}

// waitWithJitter sleeps a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	_ = s.clock.Sleep(ctx, jitter)
}

// RunOnce performs one reaper pass: claim recovery followed by queue-depth reporting.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := s.clock.Now()
	var (
		errs               []error
		allContextCanceled = true
		m                  = passMetrics{}
	)

	steps := []reaperStep{
		{fn: s.releaseExpiredClaims, label: "release expired claims", count: &m.ReleasedCount, metricErr: &m.ReleasedErr},
		{fn: s.reportQueueDepth, label: "report queue depth", count: &m.ReportedCount, metricErr: &m.ReportedErr},
	}

	for _, step := range steps {
		outcome := s.executeStep(ctx, step.fn, step.label)
		*step.count = outcome.count
		*step.metricErr = outcome.metricErr
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	m.Elapsed = s.clock.Now().Sub(start)
	s.emitPassMetrics(m)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("reaper pass failed: %w", joined)
	}
	return nil
}

type reaperFunc func(context.Context) (int64, error)

type reaperStep struct {
	fn        reaperFunc
	label     string
	count     *int64
	metricErr *error
}

type reaperStepOutcome struct {
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *ReaperService) executeStep(ctx context.Context, fn reaperFunc, label string) reaperStepOutcome {
	count, err := fn(ctx)
	outcome := reaperStepOutcome{
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", label, err)
	}
	return outcome
}

// releaseExpiredClaims recovers lapsed claims in batches until a batch comes back short.
// Each recovery spends a retry, so a job that keeps killing its worker ends failed.
func (s *ReaperService) releaseExpiredClaims(ctx context.Context) (int64, error) {
	var total core.ReleaseResult
	defer func() { s.emitClaimsFailed(total.Failed) }()

	for range maxReleaseRounds {
		res, err := s.repo.ReleaseExpiredClaims(ctx, s.config.BatchSize)
		if err != nil {
			return total.Released, err
		}
		total.Released += res.Released
		total.Failed += res.Failed
		if res.Released < int64(s.config.BatchSize) {
			break
		}
		if ctx.Err() != nil {
			return total.Released, ctx.Err()
		}
	}

	if total.Released > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "released expired claims",
			"count", total.Released,
			"failed_at_ceiling", total.Failed,
		)
	}
	return total.Released, nil
}

func (s *ReaperService) emitClaimsFailed(n int64) {
	if s.metrics == nil || n == 0 {
		return
	}
	s.metrics.Count("reaper.claims_failed", n, nil)
}

// reportQueueDepth publishes per-status gauges for each channel. It returns the number
// of channels reported.
func (s *ReaperService) reportQueueDepth(ctx context.Context) (int64, error) {
	if s.queue == nil {
		return 0, nil
	}

	var (
		reported int64
		errs     []error
	)
	for _, ch := range s.channels {
		stats, err := s.queue.Stats(ctx, ch)
		if err != nil {
			if isContextCancellation(err) {
				return reported, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			continue
		}
		s.emitQueueGauges(stats)
		reported++
	}
	return reported, errors.Join(errs...)
}

func (s *ReaperService) emitQueueGauges(stats *model.QueueStats) {
	if s.metrics == nil || stats == nil {
		return
	}
	for status, v := range map[model.JobStatus]int64{
		model.JobStatusPending: stats.Pending,
		model.JobStatusClaimed: stats.Claimed,
		model.JobStatusDone:    stats.Done,
		model.JobStatusFailed:  stats.Failed,
	} {
		s.metrics.Gauge("queue.jobs", float64(v), map[string]string{
			"channel": string(stats.Channel),
			"status":  string(status),
		})
	}
}

type passMetrics struct {
	ReleasedCount int64
	ReleasedErr   error
	ReportedCount int64
	ReportedErr   error
	Elapsed       time.Duration
}

func (s *ReaperService) emitPassMetrics(m passMetrics) {
	if s.metrics == nil {
		return
	}

	firstErr := firstError(m.ReleasedErr, m.ReportedErr)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if m.ReleasedCount == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.pass", 1, tags)
	if m.Elapsed > 0 {
		s.metrics.Timing("reaper.pass_duration", m.Elapsed, metrics.CloneTags(tags))
	}

	s.emitOperationMetric("release_claims", m.ReleasedCount, m.ReleasedErr)
	s.emitOperationMetric("queue_stats", m.ReportedCount, m.ReportedErr)

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.clock.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitOperationMetric(operation string, count int64, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.operation", 1, tags)
	if operation == "release_claims" && err == nil && count > 0 {
		s.metrics.Count("reaper.claims_released", count, nil)
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, "reaper "+label+" cancelled by context", "error", err)
		return
	}

	s.logger.ErrorContext(ctx, "reaper "+label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
