// internal/channels/sms_test.go
package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"

	stderrors "medreminder/internal/common/errors"
	"medreminder/internal/common/logger"
	"medreminder/internal/profile"
)

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func TestSMSSender_Send_Delivered(t *testing.T) {
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			assert.Equal(t, "+15551234567", *params.PhoneNumber)
			assert.Contains(t, *params.Message, "Metformin")
			attr, ok := params.MessageAttributes["AWS.SNS.SMS.SenderID"]
			assert.True(t, ok)
			assert.Equal(t, "MedRemind", *attr.StringValue)
			return &sns.PublishOutput{MessageId: aws.String("sns-msg-001")}, nil
		},
	}

	sender := NewSMSSender(mockSNS, "MedRemind", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{
		UserID:  "user-001",
		Contact: profile.Contact{Phone: "+15551234567"},
	}, reminderMessage())

	assert.Equal(t, "sms", res.Channel)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, "sns-msg-001", res.ProviderID)
}

func TestSMSSender_Send_NoSenderIDAttribute(t *testing.T) {
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			assert.Empty(t, params.MessageAttributes)
			return &sns.PublishOutput{}, nil
		},
	}

	sender := NewSMSSender(mockSNS, "", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{
		Contact: profile.Contact{Phone: "+15551234567"},
	}, reminderMessage())

	assert.Equal(t, OutcomeDelivered, res.Outcome)
}

func TestSMSSender_Send_SkippedWithoutPhone(t *testing.T) {
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			t.Fatal("Publish must not be called without a phone number")
			return nil, nil
		},
	}

	sender := NewSMSSender(mockSNS, "MedRemind", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{UserID: "user-001"}, reminderMessage())

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Contains(t, res.Detail, "no phone number")
}

func TestSMSSender_Send_MalformedPhoneRejectedLocally(t *testing.T) {
	tests := []struct {
		name  string
		phone string
	}{
		{name: "letters", phone: "not-a-number"},
		{name: "too short", phone: "+1234"},
		{name: "too long", phone: "+1234567890123456"},
		{name: "leading zero", phone: "+0123456789"},
		{name: "spaces", phone: "+1 555 123 4567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSNS := &MockSNSService{
				PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					t.Fatal("malformed numbers must be rejected before any provider call")
					return nil, nil
				},
			}

			sender := NewSMSSender(mockSNS, "", logger.NewTestLogger(t))
			res := sender.Send(context.Background(), Recipient{
				Contact: profile.Contact{Phone: tt.phone},
			}, reminderMessage())

			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.Contains(t, res.Detail, string(stderrors.ErrCodeInvalidPhone))
		})
	}
}

func TestSMSSender_Send_AcceptsWithoutPlus(t *testing.T) {
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return &sns.PublishOutput{}, nil
		},
	}

	sender := NewSMSSender(mockSNS, "", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{
		Contact: profile.Contact{Phone: "15551234567"},
	}, reminderMessage())

	assert.Equal(t, OutcomeDelivered, res.Outcome)
}

func TestSMSSender_Send_ProviderFailure(t *testing.T) {
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("SNS service unavailable")
		},
	}

	sender := NewSMSSender(mockSNS, "", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{
		Contact: profile.Contact{Phone: "+15551234567"},
	}, reminderMessage())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Detail, "SNS service unavailable")
}
