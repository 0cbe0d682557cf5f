// internal/channels/push_test.go
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"medreminder/internal/common/logger"
	"medreminder/internal/profile"
)

type MockHTTPDoer struct {
	DoWithContextFunc func(ctx context.Context, req *http.Request) (*http.Response, error)
}

func (m *MockHTTPDoer) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return m.DoWithContextFunc(ctx, req)
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestPushSender_Send_Delivered(t *testing.T) {
	mockClient := &MockHTTPDoer{
		DoWithContextFunc: func(ctx context.Context, req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "https://push.example.com/send", req.URL.String())
			assert.Equal(t, "key=server-key-001", req.Header.Get("Authorization"))

			var payload map[string]interface{}
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			assert.Equal(t, "device-token-001", payload["to"])

			notification := payload["notification"].(map[string]interface{})
			assert.Equal(t, "Medication Reminder", notification["title"])
			assert.Contains(t, notification["body"], "Metformin")

			return httpResponse(http.StatusOK, `{"success":1}`), nil
		},
	}

	sender := NewPushSender(mockClient, "https://push.example.com/send", "server-key-001", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{
		UserID:  "user-001",
		Contact: profile.Contact{DeviceToken: "device-token-001"},
	}, reminderMessage())

	assert.Equal(t, "push", res.Channel)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
}

func TestPushSender_Send_SkippedWithoutToken(t *testing.T) {
	mockClient := &MockHTTPDoer{
		DoWithContextFunc: func(ctx context.Context, req *http.Request) (*http.Response, error) {
			t.Fatal("no request must be made without a device token")
			return nil, nil
		},
	}

	sender := NewPushSender(mockClient, "https://push.example.com/send", "key", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{UserID: "user-001"}, reminderMessage())

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Contains(t, res.Detail, "no device token")
}

func TestPushSender_Send_TransportFailure(t *testing.T) {
	mockClient := &MockHTTPDoer{
		DoWithContextFunc: func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}

	sender := NewPushSender(mockClient, "https://push.example.com/send", "key", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{
		Contact: profile.Contact{DeviceToken: "device-token-001"},
	}, reminderMessage())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Detail, "connection refused")
}

func TestPushSender_Send_Non2xxIsFailure(t *testing.T) {
	mockClient := &MockHTTPDoer{
		DoWithContextFunc: func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return httpResponse(http.StatusUnauthorized, `{"error":"bad key"}`), nil
		},
	}

	sender := NewPushSender(mockClient, "https://push.example.com/send", "key", logger.NewTestLogger(t))
	res := sender.Send(context.Background(), Recipient{
		Contact: profile.Contact{DeviceToken: "device-token-001"},
	}, reminderMessage())

	assert.Equal(t, OutcomeFailed, res.Outcome)
}
