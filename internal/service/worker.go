package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/job"
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/observability/metrics"
)

// Worker defaults.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultBatchSize    = 50
)

// ErrWorkerRunning is returned when Run is called on a worker that is already running.
var ErrWorkerRunning = errors.New("delivery worker already running")

// WorkerIdentity returns a claim owner that is unique per process.
func WorkerIdentity(channel model.Channel) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s", host, channel, uuid.NewString())
}

// DeliveryWorkerOptions groups dependencies for DeliveryWorker.
type DeliveryWorkerOptions struct {
	Channel   model.Channel      // Required: channel served
	Queue     core.JobQueue      // Required: job queue
	Processor *DeliveryProcessor // Required: per-job pipeline
	Lease     *job.LeasePolicy   // Required: claim lease policy
	Clock     clock.Clock        // Optional: defaults to the system clock
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// Owner is the claim identity. Defaults to WorkerIdentity(Channel).
	Owner   string
	Metrics metrics.Sink // Optional: metrics sink
	Logger  *slog.Logger // Optional: structured logger
}

// DeliveryWorker polls the queue for one channel and processes jobs sequentially.
type DeliveryWorker struct {
	channel   model.Channel
	queue     core.JobQueue
	processor *DeliveryProcessor
	lease     *job.LeasePolicy
	clock     clock.Clock
	interval  time.Duration
	batchSize int
	owner     string
	metrics   metrics.Sink
	logger    *slog.Logger
	running   atomic.Bool
}

// TickSummary counts what one tick did.
type TickSummary struct {
	Fetched  int
	Claimed  int
	Outcomes map[string]int
	Errors   int
}

// NewDeliveryWorker constructs a DeliveryWorker.
func NewDeliveryWorker(opts DeliveryWorkerOptions) (*DeliveryWorker, error) {
	switch {
	case !opts.Channel.Valid():
		return nil, fmt.Errorf("invalid channel %q", opts.Channel)
	case opts.Queue == nil:
		return nil, errors.New("JobQueue is required")
	case opts.Processor == nil:
		return nil, errors.New("DeliveryProcessor is required")
	case opts.Lease == nil:
		return nil, errors.New("LeasePolicy is required")
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	owner := opts.Owner
	if owner == "" {
		owner = WorkerIdentity(opts.Channel)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DeliveryWorker{
		channel:   opts.Channel,
		queue:     opts.Queue,
		processor: opts.Processor,
		lease:     opts.Lease,
		clock:     clock.OrReal(opts.Clock),
		interval:  interval,
		batchSize: batch,
		owner:     owner,
		metrics:   metrics.OrNop(opts.Metrics),
		logger:    logger.With("component", "delivery_worker", "channel", string(opts.Channel)),
	}, nil
}

// Owner returns the claim identity used by the worker.
func (w *DeliveryWorker) Owner() string { return w.owner }

// Run executes a tick immediately and then one per poll interval until ctx is done.
// Ticks never overlap. Returns nil on cancellation.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrWorkerRunning
	}
	defer w.running.Store(false)

	w.logger.InfoContext(ctx, "delivery worker starting",
		"owner", w.owner,
		"poll_interval", w.interval,
		"batch_size", w.batchSize,
		"lease", w.lease.Default(),
	)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "delivery worker stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C():
			w.runTick(ctx)
		}
	}
}

func (w *DeliveryWorker) runTick(ctx context.Context) {
	summary, err := w.Tick(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "delivery tick failed", "error", err)
		return
	}
	if summary.Fetched > 0 {
		w.logger.InfoContext(ctx, "delivery tick complete",
			"fetched", summary.Fetched,
			"claimed", summary.Claimed,
			"outcomes", summary.Outcomes,
			"errors", summary.Errors,
		)
	}
}

// Tick fetches one batch and processes each job it manages to claim. A failure on one
// job is logged and does not stop the batch.
func (w *DeliveryWorker) Tick(ctx context.Context) (TickSummary, error) {
	summary := TickSummary{Outcomes: map[string]int{}}
	start := w.clock.Now()

	jobs, err := w.queue.FetchBatch(ctx, w.channel, w.batchSize)
	if err != nil {
		w.metrics.Count("delivery.fetch_errors", 1, map[string]string{"channel": string(w.channel)})
		return summary, fmt.Errorf("fetch batch: %w", err)
	}
	summary.Fetched = len(jobs)
	w.metrics.Gauge("delivery.batch_size", float64(len(jobs)), map[string]string{"channel": string(w.channel)})

	lease := w.lease.Resolve(0)
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}

		claimed, err := w.claim(ctx, j, lease)
		if err != nil {
			summary.Errors++
			w.logger.ErrorContext(ctx, "claim failed", "job_id", j.ID, "error", err)
			continue
		}
		if !claimed {
			w.logger.DebugContext(ctx, "job claimed elsewhere", "job_id", j.ID)
			continue
		}
		summary.Claimed++

		outcome, err := w.processOne(ctx, j)
		if err != nil {
			summary.Errors++
			continue
		}
		summary.Outcomes[outcome]++
	}

	if summary.Fetched > 0 {
		w.metrics.Timing("delivery.tick_duration", w.clock.Now().Sub(start), map[string]string{"channel": string(w.channel)})
	}
	return summary, nil
}

// Drain claims jobs in batches with a single locking statement each and processes them
// until the queue has nothing due or max jobs were claimed. A max of zero means no limit.
// It is meant for one-off operator runs, not for the polling loop.
func (w *DeliveryWorker) Drain(ctx context.Context, maxJobs int) (TickSummary, error) {
	summary := TickSummary{Outcomes: map[string]int{}}
	lease := w.lease.Resolve(0)

	for ctx.Err() == nil {
		limit := w.batchSize
		if maxJobs > 0 {
			limit = min(limit, maxJobs-summary.Claimed)
		}
		if limit <= 0 {
			break
		}

		jobs, err := w.queue.ClaimBatch(ctx, core.ClaimBatchParams{
			Channel:    w.channel,
			Owner:      w.owner,
			Limit:      limit,
			Lease:      lease.Lease,
			MaxRetries: w.processor.MaxRetries(),
		})
		if err != nil {
			return summary, fmt.Errorf("claim batch: %w", err)
		}
		if len(jobs) == 0 {
			break
		}
		summary.Fetched += len(jobs)
		summary.Claimed += len(jobs)

		for _, j := range jobs {
			if ctx.Err() != nil {
				break
			}
			outcome, err := w.processOne(ctx, j)
			if err != nil {
				summary.Errors++
				continue
			}
			summary.Outcomes[outcome]++
		}
	}
	return summary, nil
}

// claim takes j and refreshes its retry counter from the row, since the fetched
// snapshot may predate attempts recorded by other workers.
func (w *DeliveryWorker) claim(ctx context.Context, j *model.Job, lease job.LeaseDecision) (bool, error) {
	now := w.clock.Now()
	res, err := w.queue.Claim(ctx, core.ClaimParams{
		JobID:      j.ID,
		Owner:      w.owner,
		Lease:      lease.Lease,
		MaxRetries: w.processor.MaxRetries(),
	})
	if err != nil || !res.Claimed {
		return false, err
	}

	if res.RetryAttempts != j.RetryAttempts {
		w.logger.DebugContext(ctx, "retry counter moved since fetch",
			"job_id", j.ID, "fetched", j.RetryAttempts, "claimed", res.RetryAttempts)
	}
	expires := lease.ExpiresAt(now)
	owner := w.owner
	j.RetryAttempts = res.RetryAttempts
	j.Status = model.JobStatusClaimed
	j.ClaimedBy = &owner
	j.ClaimedAt = &now
	j.ClaimExpiresAt = &expires
	return true, nil
}

// processOne isolates a single job so a panic in any collaborator cannot stop the loop.
func (w *DeliveryWorker) processOne(ctx context.Context, j *model.Job) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing job %d: %v", j.ID, r)
			w.logger.ErrorContext(ctx, "job processing panicked", "job_id", j.ID, "panic", r)
		}
	}()
	return w.processor.Process(ctx, j, w.owner)
}
