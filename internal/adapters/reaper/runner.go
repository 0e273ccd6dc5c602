// Package reaper provides adapters for running the claim reaper.
package reaper

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
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/observability/metrics"
	"github.com/academic360/notifier/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
// It constructs the reaper service and runs the recovery loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger
	// Channels restricts queue-depth gauges. Defaults to every channel.
	Channels []model.Channel

	// Optional dependency injection for testing/decoupling
	Repo    core.ReaperRepository
	Queue   core.JobQueue
	Clock   clock.Clock
	Metrics metrics.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper: reaper,
		logger: opts.Logger,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireReaperService wires up all dependencies for the reaper service.
func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	repo, queue := opts.Repo, opts.Queue
	if opts.DB != nil && (repo == nil || queue == nil) {
		// One repository serves both ports.
		jobRepo := data.NewJobQueueRepo(opts.DB, data.JobQueueRepoConfig{Clock: opts.Clock, Logger: opts.Logger})
		if repo == nil {
			repo = jobRepo
		}
		if queue == nil {
			queue = jobRepo
		}
	}

	return service.NewReaperService(service.ReaperServiceOptions{
		Repo:     repo,
		Queue:    queue,
		Config:   opts.Config,
		Channels: opts.Channels,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
}

// RunOnce performs a single recovery pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.reaper.RunOnce(ctx)
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
