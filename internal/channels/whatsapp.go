// internal/channels/whatsapp.go
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"medreminder/internal/common/logger"
)

type whatsAppPayload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

// WhatsAppSender posts to the WhatsApp Business API. The medication-level
// opt-in number overrides the profile number; either way the number is
// reduced to digits before the call.
type WhatsAppSender struct {
	client        HTTPDoer
	endpoint      string
	phoneNumberID string
	accessToken   string
	logger        logger.Logger
}

func NewWhatsAppSender(client HTTPDoer, endpoint, phoneNumberID, accessToken string, log logger.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		client:        client,
		endpoint:      strings.TrimRight(endpoint, "/"),
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		logger:        log.WithFields(map[string]interface{}{"channel": "whatsapp"}),
	}
}

func (s *WhatsAppSender) Name() string { return "whatsapp" }

func (s *WhatsAppSender) Send(ctx context.Context, to Recipient, msg Message) Result {
	phone := to.WhatsAppOverride
	if phone == "" {
		phone = to.Contact.WhatsAppPhone
	}

	digits := digitsOnly(phone)
	if digits == "" {
		return skipped(s.Name(), "no whatsapp number on record")
	}

	body, err := json.Marshal(whatsAppPayload{
		MessagingProduct: "whatsapp",
		To:               digits,
		Type:             "text",
		Text:             whatsAppText{Body: msg.Body},
	})
	if err != nil {
		return failed(s.Name(), err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.endpoint, s.phoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failed(s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.DoWithContext(ctx, req)
	if err != nil {
		s.logger.Error("whatsapp send failed", map[string]interface{}{
			"userId": to.UserID,
			"error":  err.Error(),
		})
		return failed(s.Name(), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("whatsapp provider returned %s", resp.Status)
		s.logger.Error("whatsapp send failed", map[string]interface{}{
			"userId": to.UserID,
			"status": resp.StatusCode,
		})
		return failed(s.Name(), err)
	}

	return delivered(s.Name(), "")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
