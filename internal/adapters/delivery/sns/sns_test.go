package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	out    *sns.PublishOutput
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestSend_Publishes(t *testing.T) {
	pub := &fakePublisher{out: &sns.PublishOutput{MessageId: aws.String("sns-1")}}
	client := NewClientWithPublisher(pub, Config{SenderID: "ACADMY"})

	res := client.Send(context.Background(), model.Message{
		Channel:      model.ChannelSMS,
		Address:      "+91 98765 43210",
		TemplateName: "Fee of Rs {{2}} due for {{1}}",
		BodyValues:   []string{"Jan", "500"},
	})
	require.True(t, res.OK, "unexpected error: %v", res.Err)
	assert.Equal(t, "sns-1", res.ProviderID)

	require.Len(t, pub.inputs, 1)
	in := pub.inputs[0]
	assert.Equal(t, "+919876543210", aws.ToString(in.PhoneNumber))
	assert.Equal(t, "Fee of Rs 500 due for Jan", aws.ToString(in.Message))
	assert.Equal(t, "Transactional", aws.ToString(in.MessageAttributes[attrSMSType].StringValue))
	assert.Equal(t, "ACADMY", aws.ToString(in.MessageAttributes[attrSenderID].StringValue))
}

func TestSend_SenderOverrideAndPromotional(t *testing.T) {
	pub := &fakePublisher{out: &sns.PublishOutput{}}
	client := NewClientWithPublisher(pub, Config{SMSType: "Promotional"})

	res := client.Send(context.Background(), model.Message{Address: "+14155550100", TemplateName: "Hi", SenderID: "SCHOOL"})
	require.True(t, res.OK)

	in := pub.inputs[0]
	assert.Equal(t, "Promotional", aws.ToString(in.MessageAttributes[attrSMSType].StringValue))
	assert.Equal(t, "SCHOOL", aws.ToString(in.MessageAttributes[attrSenderID].StringValue))
}

func TestSend_InvalidInput(t *testing.T) {
	pub := &fakePublisher{}
	client := NewClientWithPublisher(pub, Config{})

	res := client.Send(context.Background(), model.Message{Address: "call me", TemplateName: "Hi"})
	require.False(t, res.OK)
	assert.True(t, apperrors.IsValidation(res.Err))

	res = client.Send(context.Background(), model.Message{Address: "+14155550100"})
	require.False(t, res.OK)
	assert.True(t, apperrors.IsValidation(res.Err))

	assert.Empty(t, pub.inputs)
}

func TestSend_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "server fault", err: &smithy.GenericAPIError{Code: "InternalError", Fault: smithy.FaultServer}, transient: true},
		{name: "throttled", err: &smithy.GenericAPIError{Code: "Throttling", Fault: smithy.FaultClient}, transient: true},
		{name: "invalid parameter", err: &smithy.GenericAPIError{Code: "InvalidParameter", Fault: smithy.FaultClient}},
		{name: "network", err: errors.New("dial tcp: i/o timeout"), transient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClientWithPublisher(&fakePublisher{err: tt.err}, Config{})
			res := client.Send(context.Background(), model.Message{Address: "+14155550100", TemplateName: "Hi"})
			require.False(t, res.OK)
			assert.Equal(t, tt.transient, apperrors.IsTransient(res.Err), "error: %v", res.Err)
			assert.False(t, apperrors.IsPermanent(res.Err))
		})
	}
}

func TestNewClient_RequiresRegion(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}
