package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/academic360/notifier/internal/clock"
	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/domain/job"
	"github.com/academic360/notifier/internal/domain/model"
	"github.com/academic360/notifier/internal/mocks"
	"github.com/academic360/notifier/internal/observability/metrics"
)

const (
	testRateDelay = 300 * time.Millisecond
	testLease     = 2 * time.Minute
)

type processorFixture struct {
	queue     *mocks.MockJobQueue
	client    *mocks.MockDeliveryClient
	directory *mocks.MockContactDirectory
	templates *mocks.MockTemplateRepository
	sequences *mocks.MockFieldSequenceRepository
	contents  *mocks.MockContentRepository
	clock     *clock.Fake
	metrics   *recordingSink
}

func newProcessor(t *testing.T, env model.Environment) (*DeliveryProcessor, processorFixture) {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := processorFixture{
		queue:     mocks.NewMockJobQueue(ctrl),
		client:    mocks.NewMockDeliveryClient(ctrl),
		directory: mocks.NewMockContactDirectory(ctrl),
		templates: mocks.NewMockTemplateRepository(ctrl),
		sequences: mocks.NewMockFieldSequenceRepository(ctrl),
		contents:  mocks.NewMockContentRepository(ctrl),
		clock:     clock.NewFake(serviceTestNow),
		metrics:   &recordingSink{},
	}

	templates, err := NewTemplateResolver(TemplateResolverOptions{
		Templates: f.templates,
		Sequences: f.sequences,
		Contents:  f.contents,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	recipients, err := NewRecipientResolver(RecipientResolverOptions{
		Directory:          f.directory,
		Environment:        env,
		DeveloperAddresses: map[model.Channel]string{model.ChannelWhatsApp: devPhone},
		Logger:             discardLogger(),
	})
	require.NoError(t, err)

	outcomes, err := NewOutcomeManager(OutcomeManagerOptions{
		Queue:  f.queue,
		Policy: job.RetryPolicy{MaxRetries: 5},
		Clock:  f.clock,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	p, err := NewDeliveryProcessor(DeliveryProcessorOptions{
		Channel:    model.ChannelWhatsApp,
		Templates:  templates,
		Recipients: recipients,
		Client:     f.client,
		Outcomes:   outcomes,
		Clock:      f.clock,
		RateDelay:  testRateDelay,
		Queue:      f.queue,
		Lease:      testLease,
		Metrics:    f.metrics,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	return p, f
}

func staffList(n int) []model.Contact {
	out := make([]model.Contact, n)
	for i := range out {
		out[i] = staff(int64(i+1), fmt.Sprintf("+91%07d", i+1), "")
	}
	return out
}

func fallbackJob(id int64, opts ...jobOption) *model.Job {
	opts = append([]jobOption{withPayload(model.Payload{Template: "fee_reminder", BodyValues: []string{"Jan", "500"}})}, opts...)
	return newTestJob(id, model.ChannelWhatsApp, opts...)
}

func TestNewDeliveryProcessor_Validation(t *testing.T) {
	_, err := NewDeliveryProcessor(DeliveryProcessorOptions{Channel: "fax"})
	require.Error(t, err)
	_, err = NewDeliveryProcessor(DeliveryProcessorOptions{Channel: model.ChannelSMS})
	require.Error(t, err)
}

func TestDeliveryProcessor_DevelopmentSendsToDeveloper(t *testing.T) {
	p, f := newProcessor(t, model.EnvDevelopment)
	ctx := context.Background()
	j := fallbackJob(1)

	f.client.EXPECT().Send(gomock.Any(), model.Message{
		Channel:      model.ChannelWhatsApp,
		Address:      devPhone,
		TemplateName: "fee_reminder",
		BodyValues:   []string{"Jan", "500"},
	}).Return(model.Delivered("msg-1"))
	f.queue.EXPECT().Complete(gomock.Any(), core.FinishParams{
		JobID: 1, NotificationID: 1001, Owner: testOwner,
	}).Return(true, nil)

	outcome, err := p.Process(ctx, j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSent, outcome)
	assert.Equal(t, []time.Duration{testRateDelay}, f.clock.Sleeps())

	jobs := f.metrics.countsNamed("delivery.jobs")
	require.Len(t, jobs, 1)
	assert.Equal(t, metrics.OutcomeSent, jobs[0].Tags["outcome"])
	assert.Equal(t, "whatsapp", jobs[0].Tags["channel"])
	assert.Len(t, f.metrics.countsNamed("delivery.sends"), 1)
}

func TestDeliveryProcessor_StagingSendsSequentiallyWithPacing(t *testing.T) {
	p, f := newProcessor(t, model.EnvStaging)
	j := fallbackJob(1)

	f.directory.EXPECT().ListStagingRecipients(gomock.Any(), model.ChannelWhatsApp, DefaultStagingRecipientLimit).
		Return([]model.Contact{staff(1, "+911", ""), staff(2, "+912", ""), staff(3, "", "+913")}, nil)

	var sent []string
	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(3).DoAndReturn(
		func(_ context.Context, msg model.Message) model.DeliveryResult {
			sent = append(sent, msg.Address)
			return model.Delivered("")
		})
	f.queue.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(true, nil)

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSent, outcome)
	assert.Equal(t, []string{"+911", "+912", "+913"}, sent)
	assert.Equal(t, []time.Duration{testRateDelay, testRateDelay, testRateDelay}, f.clock.Sleeps())
}

func TestDeliveryProcessor_StagingFanoutRenewsClaim(t *testing.T) {
	p, f := newProcessor(t, model.EnvStaging)
	j := fallbackJob(1)
	claimedAt := f.clock.Now()
	j.ClaimedAt = &claimedAt

	// 500 staff at 300ms is 2m30s of pacing, longer than one 2m lease.
	f.directory.EXPECT().ListStagingRecipients(gomock.Any(), model.ChannelWhatsApp, DefaultStagingRecipientLimit).
		Return(staffList(DefaultStagingRecipientLimit), nil)

	expiresAt := claimedAt.Add(testLease)
	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(DefaultStagingRecipientLimit).DoAndReturn(
		func(context.Context, model.Message) model.DeliveryResult {
			require.True(t, f.clock.Now().Before(expiresAt), "sent at %s on a claim that expired at %s", f.clock.Now(), expiresAt)
			return model.Delivered("")
		})
	f.queue.EXPECT().ExtendClaim(gomock.Any(), core.ClaimParams{JobID: 1, Owner: testOwner, Lease: testLease}).
		Times(2).
		DoAndReturn(func(context.Context, core.ClaimParams) (bool, error) {
			expiresAt = f.clock.Now().Add(testLease)
			return true, nil
		})
	f.queue.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, core.FinishParams) (bool, error) {
			assert.True(t, f.clock.Now().Before(expiresAt), "outcome written after the lease lapsed")
			return true, nil
		})

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSent, outcome)
	require.NotNil(t, j.ClaimExpiresAt)
	assert.Equal(t, expiresAt, *j.ClaimExpiresAt)

	renewals := f.metrics.countsNamed("delivery.claim_renewals")
	require.Len(t, renewals, 2)
	assert.Equal(t, "success", renewals[0].Tags["result"])
}

func TestDeliveryProcessor_ClaimLostMidFanoutStopsSending(t *testing.T) {
	p, f := newProcessor(t, model.EnvStaging)
	j := fallbackJob(1)

	f.directory.EXPECT().ListStagingRecipients(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(staffList(DefaultStagingRecipientLimit), nil)

	// Renewal is due before recipient 201; by then the reaper handed the job elsewhere.
	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(200).Return(model.Delivered(""))
	f.queue.EXPECT().ExtendClaim(gomock.Any(), gomock.Any()).Return(false, nil)
	f.queue.EXPECT().Complete(gomock.Any(), gomock.Any()).Times(0)
	f.queue.EXPECT().RecordRetry(gomock.Any(), gomock.Any()).Times(0)
	f.queue.EXPECT().Fail(gomock.Any(), gomock.Any()).Times(0)

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeLostClaim, outcome)

	renewals := f.metrics.countsNamed("delivery.claim_renewals")
	require.Len(t, renewals, 1)
	assert.Equal(t, "lost", renewals[0].Tags["result"])
}

func TestDeliveryProcessor_RenewalErrorKeepsSending(t *testing.T) {
	p, f := newProcessor(t, model.EnvStaging)
	j := fallbackJob(1)

	f.directory.EXPECT().ListStagingRecipients(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(staffList(250), nil)
	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(250).Return(model.Delivered(""))
	gomock.InOrder(
		f.queue.EXPECT().ExtendClaim(gomock.Any(), gomock.Any()).Return(false, errors.New("connection reset")),
		f.queue.EXPECT().ExtendClaim(gomock.Any(), gomock.Any()).Return(true, nil),
	)
	f.queue.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(true, nil)

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSent, outcome)
}

func TestDeliveryProcessor_ExhaustedByExpiredClaimsFailsWithoutSending(t *testing.T) {
	p, f := newProcessor(t, model.EnvDevelopment)
	j := fallbackJob(1, withAttempts(5))

	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)
	f.queue.EXPECT().Fail(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.FinishParams) (bool, error) {
			assert.Equal(t, 5, params.Attempts)
			assert.Contains(t, params.Reason, "expired claims")
			return true, nil
		})

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeFailed, outcome)
}

func TestDeliveryProcessor_PartialFailureRetriesWholeJob(t *testing.T) {
	p, f := newProcessor(t, model.EnvStaging)
	j := fallbackJob(1)

	f.directory.EXPECT().ListStagingRecipients(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]model.Contact{staff(1, "+911", ""), staff(2, "+912", ""), staff(3, "+913", "")}, nil)
	gomock.InOrder(
		f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Return(model.Delivered("")),
		f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Return(model.Undelivered(errors.New("provider returned 503"))),
	)
	f.queue.EXPECT().RecordRetry(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.RetryParams) (bool, error) {
			assert.Equal(t, 1, params.Attempts)
			assert.Contains(t, params.Reason, "recipient 2 of 3")
			assert.Contains(t, params.Reason, "503")
			return true, nil
		})

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeRetry, outcome)
	assert.Len(t, f.clock.Sleeps(), 1)
}

func TestDeliveryProcessor_PayloadErrorIsRetryable(t *testing.T) {
	p, f := newProcessor(t, model.EnvDevelopment)
	j := fallbackJob(1)
	j.PayloadErr = errors.New("payload validation failed")

	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)
	f.queue.EXPECT().RecordRetry(gomock.Any(), gomock.Any()).Return(true, nil)

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeRetry, outcome)
}

func TestDeliveryProcessor_TerminalNotificationIsNotResent(t *testing.T) {
	p, f := newProcessor(t, model.EnvDevelopment)
	j := fallbackJob(1, withNotificationStatus(model.NotificationStatusSent))

	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)
	f.queue.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(true, nil)

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSkipped, outcome)
}

func TestDeliveryProcessor_InactiveTemplateFailsImmediately(t *testing.T) {
	p, f := newProcessor(t, model.EnvDevelopment)
	j := newTestJob(1, model.ChannelWhatsApp, withTemplate(7))

	f.templates.EXPECT().GetByID(gomock.Any(), int64(7)).Return(&model.Template{ID: 7, Name: "old", IsActive: false}, nil)
	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)
	f.queue.EXPECT().Fail(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.FinishParams) (bool, error) {
			assert.Zero(t, params.Attempts)
			return true, nil
		})

	outcome, err := p.Process(context.Background(), j, testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomePermanent, outcome)

	jobs := f.metrics.countsNamed("delivery.jobs")
	require.Len(t, jobs, 1)
	assert.Equal(t, "permanent", jobs[0].Tags["error_class"])
}

func TestDeliveryProcessor_ClientPanicBecomesRetry(t *testing.T) {
	p, f := newProcessor(t, model.EnvDevelopment)

	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, model.Message) model.DeliveryResult { panic("nil map") })
	f.queue.EXPECT().RecordRetry(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.RetryParams) (bool, error) {
			assert.Contains(t, params.Reason, "panic")
			return true, nil
		})

	outcome, err := p.Process(context.Background(), fallbackJob(1), testOwner)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeRetry, outcome)
}

func TestDeliveryProcessor_CancellationLeavesClaim(t *testing.T) {
	p, f := newProcessor(t, model.EnvDevelopment)
	ctx, cancel := context.WithCancel(context.Background())

	f.client.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ model.Message) model.DeliveryResult {
			cancel()
			return model.Undelivered(ctx.Err())
		})

	_, err := p.Process(ctx, fallbackJob(1), testOwner)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.metrics.countsNamed("delivery.jobs"))
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "****4567", maskAddress("+911234567"))
	assert.Equal(t, "****", maskAddress("abc"))
}
