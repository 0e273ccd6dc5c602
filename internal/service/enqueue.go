package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
	"github.com/academic360/notifier/internal/observability/metrics"
)

// EnqueueServiceOptions groups dependencies for EnqueueService.
type EnqueueServiceOptions struct {
	Enqueuer core.NotificationEnqueuer // Required: transactional writer
	Metrics  metrics.Sink              // Optional: metrics sink
	Logger   *slog.Logger              // Optional: structured logger
}

// EnqueueService accepts notifications from producers and queues them for delivery.
type EnqueueService struct {
	enqueuer core.NotificationEnqueuer
	metrics  metrics.Sink
	logger   *slog.Logger
}

// NewEnqueueService constructs an EnqueueService.
func NewEnqueueService(opts EnqueueServiceOptions) (*EnqueueService, error) {
	if opts.Enqueuer == nil {
		return nil, errors.New("NotificationEnqueuer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EnqueueService{
		enqueuer: opts.Enqueuer,
		metrics:  metrics.OrNop(opts.Metrics),
		logger:   logger.With("component", "enqueue_service"),
	}, nil
}

// Enqueue validates req and persists the notification, its content and its job.
func (s *EnqueueService) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.EnqueueResult, error) {
	if req == nil {
		return nil, apperrors.Validation("enqueue request is required")
	}
	if err := req.Validate(); err != nil {
		s.count(req.Channel, metrics.ResultError)
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "invalid enqueue request")
	}

	res, err := s.enqueuer.Enqueue(ctx, req)
	if err != nil {
		s.count(req.Channel, metrics.ResultError)
		return nil, err
	}
	s.count(req.Channel, metrics.ResultSuccess)

	s.logger.InfoContext(ctx, "notification enqueued",
		"notification_id", res.NotificationID,
		"job_id", res.JobID,
		"channel", string(req.Channel),
		"user_id", req.UserID,
		"contents", len(req.Contents),
	)
	return res, nil
}

func (s *EnqueueService) count(ch model.Channel, result string) {
	s.metrics.Count("enqueue.requests", 1, map[string]string{"channel": string(ch), "result": result})
}
