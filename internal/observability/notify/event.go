// Package notify carries delivery-failure alerts to operator channels.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// DeliveryFailurePayload describes a notification that reached terminal FAILED.
type DeliveryFailurePayload struct {
	JobID          int64
	NotificationID int64
	UserID         int64
	Channel        string
	Attempts       int
	// Permanent is true for configuration failures that consumed no retries.
	Permanent  bool
	Reason     string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming delivery failure alerts.
type Sink interface {
	SendDeliveryFailure(ctx context.Context, payload DeliveryFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload DeliveryFailurePayload) error

// SendDeliveryFailure implements the Sink interface.
func (f SinkFunc) SendDeliveryFailure(ctx context.Context, payload DeliveryFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
