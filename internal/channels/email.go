// internal/channels/email.go
package channels

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"medreminder/internal/common/logger"
)

// SESService is the slice of the SES client the email sender uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type EmailSender struct {
	ses       SESService
	fromEmail string
	logger    logger.Logger
}

func NewEmailSender(sesClient SESService, fromEmail string, log logger.Logger) *EmailSender {
	return &EmailSender{
		ses:       sesClient,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"channel": "email"}),
	}
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, to Recipient, msg Message) Result {
	if to.Contact.Email == "" {
		return skipped(s.Name(), "no email address on profile")
	}

	out, err := s.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to.Contact.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Title)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
				Html: &types.Content{Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(s.fromEmail),
	})
	if err != nil {
		s.logger.Error("email send failed", map[string]interface{}{
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
