package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/academic360/notifier/internal/data"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
	"github.com/academic360/notifier/internal/mocks"
)

type templateResolverFixture struct {
	templates *mocks.MockTemplateRepository
	sequences *mocks.MockFieldSequenceRepository
	contents  *mocks.MockContentRepository
}

func newTemplateResolverFixture(t *testing.T, opts TemplateResolverOptions) (*TemplateResolver, templateResolverFixture) {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := templateResolverFixture{
		templates: mocks.NewMockTemplateRepository(ctrl),
		sequences: mocks.NewMockFieldSequenceRepository(ctrl),
		contents:  mocks.NewMockContentRepository(ctrl),
	}
	opts.Templates = f.templates
	opts.Sequences = f.sequences
	opts.Contents = f.contents
	opts.Logger = discardLogger()

	r, err := NewTemplateResolver(opts)
	require.NoError(t, err)
	return r, f
}

func content(id, fieldID int64, value string, at time.Time) model.ContentValue {
	return model.ContentValue{ID: id, NotificationID: 1042, FieldID: fieldID, Content: value, CreatedAt: at}
}

func TestNewTemplateResolver_RequiresDependencies(t *testing.T) {
	_, err := NewTemplateResolver(TemplateResolverOptions{})
	require.Error(t, err)
}

func TestTemplateResolver_OrdersContentBySequence(t *testing.T) {
	r, f := newTemplateResolverFixture(t, TemplateResolverOptions{})
	ctx := context.Background()
	j := newTestJob(42, model.ChannelWhatsApp, withTemplate(7))

	f.templates.EXPECT().GetByID(ctx, int64(7)).Return(&model.Template{ID: 7, Name: "fee_due", IsActive: true}, nil)
	f.sequences.EXPECT().ListEnabled(ctx, int64(7)).Return([]model.FieldSequenceEntry{
		{TemplateID: 7, FieldID: 2, Sequence: 2, Enabled: true},
		{TemplateID: 7, FieldID: 1, Sequence: 1, Enabled: true},
	}, nil)
	f.contents.EXPECT().ListByNotification(ctx, int64(1042)).Return([]model.ContentValue{
		content(1, 2, "500", serviceTestNow),
		content(2, 1, "Jan", serviceTestNow.Add(time.Second)),
	}, nil)

	got, err := r.Resolve(ctx, j)
	require.NoError(t, err)
	assert.Equal(t, "fee_due", got.TemplateName)
	assert.Equal(t, []string{"Jan", "500"}, got.BodyValues)
	assert.Equal(t, 2, got.Expected)
}

func TestTemplateResolver_RepeatedFieldConsumesOldestFirst(t *testing.T) {
	r, f := newTemplateResolverFixture(t, TemplateResolverOptions{})
	ctx := context.Background()
	j := newTestJob(42, model.ChannelWhatsApp, withTemplate(7))

	f.templates.EXPECT().GetByID(ctx, int64(7)).Return(&model.Template{ID: 7, Name: "two_names", IsActive: true}, nil)
	f.sequences.EXPECT().ListEnabled(ctx, int64(7)).Return([]model.FieldSequenceEntry{
		{TemplateID: 7, FieldID: 3, Sequence: 1, Enabled: true},
		{TemplateID: 7, FieldID: 3, Sequence: 2, Enabled: true},
		{TemplateID: 7, FieldID: 4, Sequence: 3, Enabled: true},
		{TemplateID: 7, FieldID: 5, Sequence: 4, Enabled: false},
	}, nil)
	f.contents.EXPECT().ListByNotification(ctx, int64(1042)).Return([]model.ContentValue{
		content(11, 3, "Bob", serviceTestNow.Add(time.Minute)),
		content(10, 3, "Alice", serviceTestNow),
		content(12, 5, "ignored", serviceTestNow),
	}, nil)

	got, err := r.Resolve(ctx, j)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", ""}, got.BodyValues)
	assert.Equal(t, 3, got.Expected)
}

func TestTemplateResolver_NoTemplateUsesFallback(t *testing.T) {
	tests := []struct {
		name     string
		opts     TemplateResolverOptions
		payload  model.Payload
		wantName string
	}{
		{
			name:     "default fallback",
			payload:  model.Payload{BodyValues: []string{"a", "b"}},
			wantName: DefaultFallbackTemplate,
		},
		{
			name:     "configured fallback",
			opts:     TemplateResolverOptions{FallbackTemplate: "ops_notice"},
			payload:  model.Payload{BodyValues: []string{"a", "b"}},
			wantName: "ops_notice",
		},
		{
			name:     "payload names the template",
			payload:  model.Payload{Template: "exam_result", BodyValues: []string{"a", "b"}},
			wantName: "exam_result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTemplateResolverFixture(t, tt.opts)
			j := newTestJob(1, model.ChannelWhatsApp, withPayload(tt.payload))

			got, err := r.Resolve(context.Background(), j)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.TemplateName)
			assert.Equal(t, []string{"a", "b"}, got.BodyValues)
			assert.Zero(t, got.Expected)
		})
	}
}

func TestTemplateResolver_InactiveTemplateIsPermanent(t *testing.T) {
	r, f := newTemplateResolverFixture(t, TemplateResolverOptions{})
	ctx := context.Background()
	j := newTestJob(1, model.ChannelWhatsApp, withTemplate(7))

	f.templates.EXPECT().GetByID(ctx, int64(7)).Return(&model.Template{ID: 7, Name: "old", IsActive: false}, nil)

	_, err := r.Resolve(ctx, j)
	require.ErrorIs(t, err, ErrTemplateInactive)
	assert.True(t, apperrors.IsPermanent(err))
}

func TestTemplateResolver_MissingTemplateIsPermanent(t *testing.T) {
	r, f := newTemplateResolverFixture(t, TemplateResolverOptions{})
	ctx := context.Background()
	j := newTestJob(1, model.ChannelWhatsApp, withTemplate(9))

	f.templates.EXPECT().GetByID(ctx, int64(9)).Return(nil, data.ErrTemplateNotFound)

	_, err := r.Resolve(ctx, j)
	require.ErrorIs(t, err, data.ErrTemplateNotFound)
	assert.True(t, apperrors.IsPermanent(err))
}

func TestTemplateResolver_LoadErrorsAreRetryable(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("template", func(t *testing.T) {
		r, f := newTemplateResolverFixture(t, TemplateResolverOptions{})
		f.templates.EXPECT().GetByID(gomock.Any(), int64(7)).Return(nil, boom)

		_, err := r.Resolve(context.Background(), newTestJob(1, model.ChannelWhatsApp, withTemplate(7)))
		require.ErrorIs(t, err, boom)
		assert.False(t, apperrors.IsPermanent(err))
	})

	t.Run("contents", func(t *testing.T) {
		r, f := newTemplateResolverFixture(t, TemplateResolverOptions{})
		f.templates.EXPECT().GetByID(gomock.Any(), int64(7)).Return(&model.Template{ID: 7, Name: "t", IsActive: true}, nil)
		f.sequences.EXPECT().ListEnabled(gomock.Any(), int64(7)).
			Return([]model.FieldSequenceEntry{{FieldID: 1, Sequence: 1, Enabled: true}}, nil)
		f.contents.EXPECT().ListByNotification(gomock.Any(), gomock.Any()).Return(nil, boom)

		_, err := r.Resolve(context.Background(), newTestJob(1, model.ChannelWhatsApp, withTemplate(7)))
		require.ErrorIs(t, err, boom)
		assert.False(t, apperrors.IsPermanent(err))
	})
}

func TestTemplateResolver_BlankContentFallsBackToPayloadValues(t *testing.T) {
	r, f := newTemplateResolverFixture(t, TemplateResolverOptions{RequireAllPlaceholders: true})
	ctx := context.Background()
	j := newTestJob(42, model.ChannelWhatsApp, withTemplate(7),
		withPayload(model.Payload{BodyValues: []string{"x", "y"}}))

	f.templates.EXPECT().GetByID(ctx, int64(7)).Return(&model.Template{ID: 7, Name: "t", IsActive: true}, nil)
	f.sequences.EXPECT().ListEnabled(ctx, int64(7)).Return([]model.FieldSequenceEntry{
		{FieldID: 1, Sequence: 1, Enabled: true},
		{FieldID: 2, Sequence: 2, Enabled: true},
	}, nil)
	f.contents.EXPECT().ListByNotification(ctx, int64(1042)).Return(nil, nil)

	got, err := r.Resolve(ctx, j)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got.BodyValues)
	assert.Equal(t, 2, got.Expected)
}

func TestTemplateResolver_MissingPlaceholders(t *testing.T) {
	setup := func(t *testing.T, strict bool) (*TemplateResolver, *model.Job) {
		r, f := newTemplateResolverFixture(t, TemplateResolverOptions{RequireAllPlaceholders: strict})
		f.templates.EXPECT().GetByID(gomock.Any(), int64(7)).Return(&model.Template{ID: 7, Name: "t", IsActive: true}, nil)
		f.sequences.EXPECT().ListEnabled(gomock.Any(), int64(7)).Return([]model.FieldSequenceEntry{
			{FieldID: 1, Sequence: 1, Enabled: true},
			{FieldID: 2, Sequence: 2, Enabled: true},
		}, nil)
		f.contents.EXPECT().ListByNotification(gomock.Any(), int64(1042)).
			Return([]model.ContentValue{content(1, 1, "Jan", serviceTestNow)}, nil)
		return r, newTestJob(42, model.ChannelWhatsApp, withTemplate(7))
	}

	t.Run("lenient pads with empty strings", func(t *testing.T) {
		r, j := setup(t, false)
		got, err := r.Resolve(context.Background(), j)
		require.NoError(t, err)
		assert.Equal(t, []string{"Jan", ""}, got.BodyValues)
	})

	t.Run("strict rejects", func(t *testing.T) {
		r, j := setup(t, true)
		_, err := r.Resolve(context.Background(), j)
		require.ErrorIs(t, err, ErrMissingPlaceholders)
		assert.False(t, apperrors.IsPermanent(err))
	})
}

func TestTemplateResolver_NoEnabledFieldsUsesPayloadValues(t *testing.T) {
	r, f := newTemplateResolverFixture(t, TemplateResolverOptions{})
	ctx := context.Background()
	j := newTestJob(1, model.ChannelEmail, withTemplate(7),
		withPayload(model.Payload{BodyValues: []string{"only"}}))

	f.templates.EXPECT().GetByID(ctx, int64(7)).Return(&model.Template{ID: 7, Name: "welcome", IsActive: true}, nil)
	f.sequences.EXPECT().ListEnabled(ctx, int64(7)).Return(nil, nil)

	got, err := r.Resolve(ctx, j)
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.TemplateName)
	assert.Equal(t, []string{"only"}, got.BodyValues)
}
