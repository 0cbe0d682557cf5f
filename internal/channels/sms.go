// internal/channels/sms.go
package channels

import (
	"context"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"medreminder/internal/common/errors"
	"medreminder/internal/common/logger"
)

// SNSService is the slice of the SNS client the SMS sender uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// e164Pattern accepts an optional leading + followed by 8-15 digits, no
// leading zero. Malformed numbers are rejected locally, before any
// provider call.
var e164Pattern = regexp.MustCompile(`^\+?[1-9][0-9]{7,14}$`)

type SMSSender struct {
	sns      SNSService
	senderID string
	logger   logger.Logger
}

func NewSMSSender(snsClient SNSService, senderID string, log logger.Logger) *SMSSender {
	return &SMSSender{
		sns:      snsClient,
		senderID: senderID,
		logger:   log.WithFields(map[string]interface{}{"channel": "sms"}),
	}
}

func (s *SMSSender) Name() string { return "sms" }

func (s *SMSSender) Send(ctx context.Context, to Recipient, msg Message) Result {
	phone := to.Contact.Phone
	if phone == "" {
		return skipped(s.Name(), "no phone number on profile")
	}
	if !e164Pattern.MatchString(phone) {
		return failed(s.Name(), errors.NewInvalidPhoneError(phone))
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(msg.Body),
	}
	if s.senderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
		}
	}

	out, err := s.sns.Publish(ctx, input)
	if err != nil {
		s.logger.Error("SMS send failed", map[string]interface{}{
			"userId": to.UserID,
			"error":  err.Error(),
		})
		return failed(s.Name(), err)
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	return delivered(s.Name(), messageID)
}
