package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic360/notifier/internal/observability/notify"
)

type capture struct {
	mu       sync.Mutex
	received []notify.DeliveryFailurePayload
}

func (c *capture) sink() notify.Sink {
	return notify.SinkFunc(func(_ context.Context, p notify.DeliveryFailurePayload) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.received = append(c.received, p)
		return nil
	})
}

func TestServiceNotifyDeliveryFailure(t *testing.T) {
	var a, b capture
	svc := NewService(Options{
		Environment: "production",
		Sinks: []SinkRegistration{
			{Name: "a", Sink: a.sink()},
			{Name: "b", Sink: b.sink()},
			{Name: "nil"},
		},
	})
	require.True(t, svc.Enabled())

	svc.NotifyDeliveryFailure(context.Background(), notify.DeliveryFailurePayload{NotificationID: 42})

	require.Len(t, a.received, 1)
	require.Len(t, b.received, 1)
	assert.Equal(t, notify.SeverityCritical, a.received[0].Severity)
	assert.Equal(t, "production", a.received[0].Metadata["environment"])
}

func TestServicePermanentFailureIsWarning(t *testing.T) {
	var c capture
	svc := NewService(Options{Sinks: []SinkRegistration{{Name: "c", Sink: c.sink()}}})

	svc.NotifyDeliveryFailure(context.Background(), notify.DeliveryFailurePayload{NotificationID: 1, Permanent: true})

	require.Len(t, c.received, 1)
	assert.Equal(t, notify.SeverityWarning, c.received[0].Severity)
	assert.Nil(t, c.received[0].Metadata)
}

func TestServiceSkipsDevelopment(t *testing.T) {
	var c capture
	svc := NewService(Options{
		Environment: "development",
		Sinks:       []SinkRegistration{{Name: "c", Sink: c.sink()}},
	})

	svc.NotifyDeliveryFailure(context.Background(), notify.DeliveryFailurePayload{NotificationID: 1})
	assert.Empty(t, c.received)
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	assert.False(t, svc.Enabled())
	svc.NotifyDeliveryFailure(context.Background(), notify.DeliveryFailurePayload{})

	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())
}

func TestServiceLogsErrors(t *testing.T) {
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Name: "fail",
			Sink: notify.SinkFunc(func(context.Context, notify.DeliveryFailurePayload) error {
				return errors.New("boom")
			}),
		}},
	})

	assert.NotPanics(t, func() {
		svc.NotifyDeliveryFailure(context.Background(), notify.DeliveryFailurePayload{NotificationID: 1})
	})
}
