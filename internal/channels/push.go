// internal/channels/push.go
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"medreminder/internal/common/logger"
)

// HTTPDoer is the slice of the shared HTTP client the push and WhatsApp
// senders use.
type HTTPDoer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

type pushPayload struct {
	To           string           `json:"to"`
	Notification pushNotification `json:"notification"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushSender posts to the push provider's send endpoint. An absent device
// token is a skip: the user simply has no registered device.
type PushSender struct {
	client    HTTPDoer
	endpoint  string
	serverKey string
	logger    logger.Logger
}

func NewPushSender(client HTTPDoer, endpoint, serverKey string, log logger.Logger) *PushSender {
	return &PushSender{
		client:    client,
		endpoint:  endpoint,
		serverKey: serverKey,
		logger:    log.WithFields(map[string]interface{}{"channel": "push"}),
	}
}

func (s *PushSender) Name() string { return "push" }

func (s *PushSender) Send(ctx context.Context, to Recipient, msg Message) Result {
	token := to.Contact.DeviceToken
	if token == "" {
		return skipped(s.Name(), "no device token registered")
	}

	body, err := json.Marshal(pushPayload{
		To: token,
		Notification: pushNotification{
			Title: msg.Title,
			Body:  msg.Body,
		},
	})
	if err != nil {
		return failed(s.Name(), err)
	}

	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return failed(s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.DoWithContext(ctx, req)
	if err != nil {
		s.logger.Error("push send failed", map[string]interface{}{
			"userId": to.UserID,
			"error":  err.Error(),
		})
		return failed(s.Name(), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("push provider returned %s", resp.Status)
		s.logger.Error("push send failed", map[string]interface{}{
			"userId": to.UserID,
			"status": resp.StatusCode,
		})
		return failed(s.Name(), err)
	}

	return delivered(s.Name(), "")
}
