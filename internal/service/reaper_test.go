package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/academic360/notifier/config"
	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
	"github.com/academic360/notifier/internal/mocks"
)

type reaperFixture struct {
	repo    *mocks.MockReaperRepository
	queue   *mocks.MockJobQueue
	clock   *clock.Fake
	metrics *recordingSink
}

func released(n int64) core.ReleaseResult {
	return core.ReleaseResult{Released: n}
}

func newReaperFixture(t *testing.T) *reaperFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	return &reaperFixture{
		repo:    mocks.NewMockReaperRepository(ctrl),
		queue:   mocks.NewMockJobQueue(ctrl),
		clock:   clock.NewFake(serviceTestNow),
		metrics: &recordingSink{},
	}
}

func (f *reaperFixture) service(t *testing.T, batchSize int, channels ...model.Channel) *ReaperService {
	t.Helper()
	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:     f.repo,
		Queue:    f.queue,
		Config:   config.ReaperConfig{Interval: time.Minute, BatchSize: batchSize},
		Channels: channels,
		Clock:    f.clock,
		Logger:   discardLogger(),
		Metrics:  f.metrics,
	})
	require.NoError(t, err)
	return svc
}

func TestNewReaperService(t *testing.T) {
	t.Run("requires repository", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{})
		require.Error(t, err)
	})

	t.Run("sanitizes config and defaults channels", func(t *testing.T) {
		f := newReaperFixture(t)
		svc, err := NewReaperService(ReaperServiceOptions{Repo: f.repo, Config: config.ReaperConfig{}})
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, svc.config.Interval)
		assert.Equal(t, 1, svc.config.BatchSize)
		assert.Equal(t, model.Channels(), svc.channels)
	})
}

func TestReaperService_RunOnce_ReleasesInBatches(t *testing.T) {
	f := newReaperFixture(t)
	svc := f.service(t, 100, model.ChannelWhatsApp)

	gomock.InOrder(
		f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 100).Return(released(100), nil),
		f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 100).Return(released(100), nil),
		f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 100).Return(released(7), nil),
	)
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelWhatsApp).Return(&model.QueueStats{
		Channel: model.ChannelWhatsApp, Pending: 4, Claimed: 1, Done: 20, Failed: 2,
	}, nil)

	require.NoError(t, svc.RunOnce(context.Background()))

	released := f.metrics.countsNamed("reaper.claims_released")
	require.Len(t, released, 1)
	assert.InDelta(t, 207, released[0].Value, 0)

	pass := f.metrics.countsNamed("reaper.pass")
	require.Len(t, pass, 1)
	assert.Equal(t, "success", pass[0].Tags["result"])

	got := map[string]float64{}
	for _, g := range f.metrics.gaugesNamed("queue.jobs") {
		assert.Equal(t, "whatsapp", g.Tags["channel"])
		got[g.Tags["status"]] = g.Value
	}
	assert.Equal(t, map[string]float64{"pending": 4, "claimed": 1, "done": 20, "failed": 2}, got)

	last := f.metrics.gaugesNamed("reaper.last_success_epoch")
	require.Len(t, last, 1)
	assert.InDelta(t, float64(serviceTestNow.Unix()), last[0].Value, 0)
}

func TestReaperService_RunOnce_ReportsJobsFailedAtCeiling(t *testing.T) {
	f := newReaperFixture(t)
	svc := f.service(t, 10, model.ChannelWhatsApp)

	// Jobs whose claims kept lapsing run out of retries instead of cycling forever.
	f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 10).
		Return(core.ReleaseResult{Released: 4, Failed: 1}, nil)
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelWhatsApp).Return(&model.QueueStats{Channel: model.ChannelWhatsApp}, nil)

	require.NoError(t, svc.RunOnce(context.Background()))

	released := f.metrics.countsNamed("reaper.claims_released")
	require.Len(t, released, 1)
	assert.InDelta(t, 4, released[0].Value, 0)

	failed := f.metrics.countsNamed("reaper.claims_failed")
	require.Len(t, failed, 1)
	assert.InDelta(t, 1, failed[0].Value, 0)
}

func TestReaperService_RunOnce_StopsAtRoundLimit(t *testing.T) {
	f := newReaperFixture(t)
	svc := f.service(t, 1, model.ChannelSMS)

	f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 1).Return(released(1), nil).Times(maxReleaseRounds)
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelSMS).Return(&model.QueueStats{Channel: model.ChannelSMS}, nil)

	require.NoError(t, svc.RunOnce(context.Background()))
}

func TestReaperService_RunOnce_LockHeldElsewhere(t *testing.T) {
	f := newReaperFixture(t)
	svc := f.service(t, 500, model.ChannelEmail)

	// Another instance holding the recovery lock reports zero released.
	f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 500).Return(released(0), nil)
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelEmail).Return(&model.QueueStats{Channel: model.ChannelEmail}, nil)

	require.NoError(t, svc.RunOnce(context.Background()))

	pass := f.metrics.countsNamed("reaper.pass")
	require.Len(t, pass, 1)
	assert.Equal(t, "noop", pass[0].Tags["result"])
	assert.Empty(t, f.metrics.countsNamed("reaper.claims_released"))
}

func TestReaperService_RunOnce_AggregatesErrors(t *testing.T) {
	f := newReaperFixture(t)
	svc := f.service(t, 500, model.ChannelWhatsApp, model.ChannelEmail)

	f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 500).
		Return(released(0), apperrors.Transientf("database unavailable"))
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelWhatsApp).Return(nil, errors.New("boom"))
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelEmail).Return(&model.QueueStats{Channel: model.ChannelEmail}, nil)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release expired claims")
	assert.Contains(t, err.Error(), "whatsapp: boom")

	pass := f.metrics.countsNamed("reaper.pass")
	require.Len(t, pass, 1)
	assert.Equal(t, "error", pass[0].Tags["result"])
	assert.Equal(t, "transient", pass[0].Tags["error_class"])
	assert.Empty(t, f.metrics.gaugesNamed("reaper.last_success_epoch"))

	// The healthy channel still reports.
	assert.Len(t, f.metrics.gaugesNamed("queue.jobs"), 4)
}

func TestReaperService_RunOnce_Canceled(t *testing.T) {
	f := newReaperFixture(t)
	svc := f.service(t, 500, model.ChannelWhatsApp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 500).Return(released(0), context.Canceled)
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelWhatsApp).Return(nil, context.Canceled)

	err := svc.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReaperService_WithoutQueue(t *testing.T) {
	f := newReaperFixture(t)
	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   f.repo,
		Config: config.ReaperConfig{Interval: time.Minute, BatchSize: 10},
		Clock:  f.clock,
	})
	require.NoError(t, err)

	f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 10).Return(released(3), nil)
	require.NoError(t, svc.RunOnce(context.Background()))
}

func TestReaperService_Run(t *testing.T) {
	f := newReaperFixture(t)
	svc := f.service(t, 500, model.ChannelWhatsApp)

	passes := make(chan struct{}, 4)
	f.repo.EXPECT().ReleaseExpiredClaims(gomock.Any(), 500).
		DoAndReturn(func(context.Context, int) (core.ReleaseResult, error) {
			passes <- struct{}{}
			return core.ReleaseResult{}, nil
		}).
		MinTimes(2)
	f.queue.EXPECT().Stats(gomock.Any(), model.ChannelWhatsApp).
		Return(&model.QueueStats{Channel: model.ChannelWhatsApp}, nil).
		AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	waitFor(t, passes)
	require.Eventually(t, func() bool { return f.clock.TickerCount() == 1 }, time.Second, time.Millisecond)

	sleeps := f.clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Less(t, sleeps[0], 6*time.Second)

	f.clock.Advance(time.Minute)
	waitFor(t, passes)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
