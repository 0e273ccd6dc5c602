// Package jobrunner wires and runs the per-channel delivery workers.
package jobrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/data"
	"github.com/academic360/notifier/internal/domain/job"
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/observability/metrics"
	"github.com/academic360/notifier/internal/service"
	"github.com/academic360/notifier/internal/service/failurenotifier"
)

// RunnerOptions configures the delivery runner for one channel.
type RunnerOptions struct {
	DB      *sql.DB
	Channel model.Channel
	Config  *config.AppConfig
	Logger  *slog.Logger
	Clock   clock.Clock

	// Optional dependency injections (useful for tests/decoupling)
	Queue           core.JobQueue
	Templates       core.TemplateRepository
	Sequences       core.FieldSequenceRepository
	Contents        core.ContentRepository
	Directory       core.ContactDirectory
	Cache           core.CacheRepository
	Client          core.DeliveryClient
	Metrics         metrics.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner owns the delivery worker for one channel.
type Runner struct {
	channel model.Channel
	worker  *service.DeliveryWorker
	logger  *slog.Logger
}

type runnerDeps struct {
	queue     core.JobQueue
	templates core.TemplateRepository
	sequences core.FieldSequenceRepository
	contents  core.ContentRepository
	directory core.ContactDirectory
	client    core.DeliveryClient
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func buildRunnerDeps(ctx context.Context, opts RunnerOptions, logger *slog.Logger) (runnerDeps, error) {
	deps := runnerDeps{
		queue:     opts.Queue,
		templates: opts.Templates,
		sequences: opts.Sequences,
		contents:  opts.Contents,
		directory: opts.Directory,
		client:    opts.Client,
	}

	if opts.DB != nil {
		templateRepo := data.NewTemplateRepo(opts.DB)
		if deps.queue == nil {
			deps.queue = data.NewJobQueueRepo(opts.DB, data.JobQueueRepoConfig{Clock: opts.Clock, Logger: logger})
		}
		if deps.templates == nil {
			deps.templates = templateRepo
		}
		if deps.sequences == nil {
			deps.sequences = templateRepo
		}
		if deps.contents == nil {
			deps.contents = templateRepo
		}
		if deps.directory == nil {
			deps.directory = data.NewContactRepo(opts.DB)
		}
	}

	if deps.queue == nil || deps.templates == nil || deps.sequences == nil || deps.contents == nil || deps.directory == nil {
		return deps, errors.New("either DB or every repository must be provided")
	}

	if opts.Config.Cache.Enabled && opts.Cache != nil {
		cached, err := core.NewTemplateCache(core.TemplateCacheOptions{
			Cache:     opts.Cache,
			Templates: deps.templates,
			Config:    core.TemplateCacheConfig{TTL: opts.Config.Cache.TemplateTTL},
			Logger:    logger,
		})
		if err != nil {
			return deps, fmt.Errorf("template cache: %w", err)
		}
		deps.templates = cached
	}

	if deps.client == nil {
		client, err := NewDeliveryClient(ctx, opts.Channel, opts.Config, logger)
		if err != nil {
			return deps, fmt.Errorf("delivery client: %w", err)
		}
		deps.client = client
	}
	return deps, nil
}

// NewRunner wires repositories, resolvers and the provider client into a delivery worker.
func NewRunner(ctx context.Context, opts RunnerOptions) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if !opts.Channel.Valid() {
		return nil, fmt.Errorf("invalid channel %q", opts.Channel)
	}
	logger := resolveLogger(opts.Logger).With("channel", string(opts.Channel))

	deps, err := buildRunnerDeps(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	worker, err := wireWorker(opts, deps, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{channel: opts.Channel, worker: worker, logger: logger}, nil
}

func wireWorker(opts RunnerOptions, deps runnerDeps, logger *slog.Logger) (*service.DeliveryWorker, error) {
	cfg := opts.Config
	settings := cfg.Channel(opts.Channel)

	templates, err := service.NewTemplateResolver(service.TemplateResolverOptions{
		Templates:              deps.templates,
		Sequences:              deps.sequences,
		Contents:               deps.contents,
		FallbackTemplate:       cfg.Delivery.FallbackTemplate,
		RequireAllPlaceholders: cfg.Delivery.RequireAllPlaceholders,
		Logger:                 logger,
	})
	if err != nil {
		return nil, fmt.Errorf("template resolver: %w", err)
	}

	recipients, err := service.NewRecipientResolver(service.RecipientResolverOptions{
		Directory:          deps.directory,
		Environment:        cfg.Environment,
		DeveloperAddresses: cfg.Delivery.DeveloperAddresses(),
		HonorDevOnly:       cfg.Delivery.HonorDevOnly,
		StagingLimit:       cfg.Delivery.StagingRecipientLimit,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("recipient resolver: %w", err)
	}

	outcomes, err := service.NewOutcomeManager(service.OutcomeManagerOptions{
		Queue:           deps.queue,
		Policy:          job.RetryPolicy{MaxRetries: settings.MaxRetries},
		Backoff:         cfg.Delivery.Backoff(),
		Clock:           opts.Clock,
		FailureNotifier: opts.FailureNotifier,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("outcome manager: %w", err)
	}

	lease, err := job.NewLeasePolicy(cfg.Delivery.ClaimLease)
	if err != nil {
		return nil, fmt.Errorf("lease policy: %w", err)
	}

	processor, err := service.NewDeliveryProcessor(service.DeliveryProcessorOptions{
		Channel:    opts.Channel,
		Templates:  templates,
		Recipients: recipients,
		Client:     deps.client,
		Outcomes:   outcomes,
		Clock:      opts.Clock,
		RateDelay:  settings.RateDelay(),
		Queue:      deps.queue,
		Lease:      lease.Default(),
		Metrics:    opts.Metrics,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("delivery processor: %w", err)
	}

	return service.NewDeliveryWorker(service.DeliveryWorkerOptions{
		Channel:      opts.Channel,
		Queue:        deps.queue,
		Processor:    processor,
		Lease:        lease,
		Clock:        opts.Clock,
		PollInterval: settings.PollInterval(),
		BatchSize:    settings.BatchSize,
		Metrics:      opts.Metrics,
		Logger:       logger,
	})
}

// Owner returns the claim identity of the underlying worker.
func (r *Runner) Owner() string {
	return r.worker.Owner()
}

// Run processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting delivery runner", "owner", r.worker.Owner())
	return r.worker.Run(ctx)
}

// Drain claims and processes due jobs once, up to maxJobs (zero for no limit), and returns.
func (r *Runner) Drain(ctx context.Context, maxJobs int) (service.TickSummary, error) {
	r.logger.InfoContext(ctx, "draining delivery queue", "owner", r.worker.Owner(), "max_jobs", maxJobs)
	return r.worker.Drain(ctx, maxJobs)
}
