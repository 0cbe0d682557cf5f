// internal/channels/sender.go
package channels

import (
	"context"

	"medreminder/internal/profile"
)

// Outcome classifies a single send attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Message is the uniform payload every channel receives.
type Message struct {
	Title string
	Body  string
}

// Recipient carries the resolved contact plus any medication-level
// overrides (a per-medication WhatsApp opt-in number wins over the
// profile number).
type Recipient struct {
	UserID           string
	Contact          profile.Contact
	WhatsAppOverride string
}

// Result is the per-channel outcome of one send attempt. Failures are
// reported here, never returned as errors: a channel failure must not
// abort sibling channels or the scheduler's re-arm.
type Result struct {
	Channel    string
	Outcome    Outcome
	Detail     string
	ProviderID string
}

// Sender is the uniform capability implemented by every channel. A call
// either delivers, fails, or is skipped because a prerequisite (device
// token, address, phone number) is absent. Stateless per call: no
// retries, no queuing.
type Sender interface {
	Name() string
	Send(ctx context.Context, to Recipient, msg Message) Result
}

func delivered(channel, providerID string) Result {
	return Result{Channel: channel, Outcome: OutcomeDelivered, ProviderID: providerID}
}

func skipped(channel, reason string) Result {
	return Result{Channel: channel, Outcome: OutcomeSkipped, Detail: reason}
}

func failed(channel string, err error) Result {
	return Result{Channel: channel, Outcome: OutcomeFailed, Detail: err.Error()}
}
