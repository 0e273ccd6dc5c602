// Package failurenotifier fans terminal delivery failures out to operator sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/academic360/notifier/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Environment is attached to every alert. Alerts are suppressed in development.
	Environment string
	// Timeout bounds each sink call. Defaults to 10s.
	Timeout time.Duration
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger      *slog.Logger
	sinks       []SinkRegistration
	environment string
	timeout     time.Duration
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		sinks = append(sinks, SinkRegistration{
			Name: notify.Fallback(entry.Name, "sink"),
			Sink: entry.Sink,
		})
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Service{
		logger:      logger.With("component", "failure_notifier"),
		sinks:       sinks,
		environment: opts.Environment,
		timeout:     timeout,
	}
}

// NotifyDeliveryFailure fans the payload out to all sinks and waits for them.
func (s *Service) NotifyDeliveryFailure(ctx context.Context, payload notify.DeliveryFailurePayload) {
	if s == nil || len(s.sinks) == 0 {
		return
	}

	if s.environment == "development" {
		s.logger.DebugContext(ctx, "skipping failure alert in development",
			"notification_id", payload.NotificationID,
			"job_id", payload.JobID,
		)
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
		if payload.Permanent {
			payload.Severity = notify.SeverityWarning
		}
	}
	if s.environment != "" {
		md := make(map[string]string, len(payload.Metadata)+1)
		for k, v := range payload.Metadata {
			md[k] = v
		}
		md["environment"] = s.environment
		payload.Metadata = md
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendDeliveryFailure(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"notification_id", payload.NotificationID,
					"job_id", payload.JobID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
