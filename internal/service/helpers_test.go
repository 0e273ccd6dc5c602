package service

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/academic360/notifier/internal/domain/model"
)

var serviceTestNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

type jobOption func(*model.Job)

func withTemplate(id int64) jobOption {
	return func(j *model.Job) { j.Notification.TemplateID = int64Ptr(id) }
}

func withPayload(p model.Payload) jobOption {
	return func(j *model.Job) {
		p.Channel = j.Channel
		j.Payload = p
	}
}

func withAttempts(n int) jobOption {
	return func(j *model.Job) { j.RetryAttempts = n }
}

func withNotificationStatus(s model.NotificationStatus) jobOption {
	return func(j *model.Job) { j.Notification.Status = s }
}

func newTestJob(id int64, channel model.Channel, opts ...jobOption) *model.Job {
	j := &model.Job{
		ID:             id,
		NotificationID: id + 1000,
		Channel:        channel,
		Status:         model.JobStatusPending,
		NextAttemptAt:  serviceTestNow,
		CreatedAt:      serviceTestNow,
		UpdatedAt:      serviceTestNow,
		Notification: model.Notification{
			ID:        id + 1000,
			UserID:    id + 500,
			Channel:   channel,
			Status:    model.NotificationStatusPending,
			CreatedAt: serviceTestNow,
		},
		Payload: model.Payload{Channel: channel},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// recordingSink captures metric emissions.
type recordingSink struct {
	mu     sync.Mutex
	counts []recordedMetric
	gauges []recordedMetric
	timers []recordedMetric
}

type recordedMetric struct {
	Name  string
	Value float64
	Tags  map[string]string
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, recordedMetric{Name: name, Value: float64(value), Tags: tags})
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges = append(s.gauges, recordedMetric{Name: name, Value: value, Tags: tags})
}

func (s *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, recordedMetric{Name: name, Value: value.Seconds(), Tags: tags})
}

func (s *recordingSink) countsNamed(name string) []recordedMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedMetric
	for _, m := range s.counts {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

func (s *recordingSink) gaugesNamed(name string) []recordedMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedMetric
	for _, m := range s.gauges {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
