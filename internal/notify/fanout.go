// internal/notify/fanout.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"medreminder/internal/channels"
	"medreminder/internal/common/logger"
	"medreminder/internal/common/metrics"
	"medreminder/internal/common/observability"
)

// Event identifies one reminder firing. It is ephemeral: transmitted to
// channels and (optionally) to the delivery-history sink, never stored as
// schedule state.
type Event struct {
	ID           string
	MedicationID string
	UserID       string
	Name         string
	Dosage       string
	Time         string // the "HH:MM" slot that fired
	FiredAt      time.Time
	Trigger      string // "scheduled" or "test"
}

// NewEvent builds an event for a firing of the given medication slot.
func NewEvent(medicationID, userID, name, dosage, slot string, firedAt time.Time, trigger string) Event {
	return Event{
		ID:           uuid.New().String(),
		MedicationID: medicationID,
		UserID:       userID,
		Name:         name,
		Dosage:       dosage,
		Time:         slot,
		FiredAt:      firedAt,
		Trigger:      trigger,
	}
}

// BuildMessage renders the uniform reminder message for an event.
func BuildMessage(ev Event) channels.Message {
	return channels.Message{
		Title: "Medication Reminder",
		Body:  fmt.Sprintf("It's time to take your %s (%s) at %s.", ev.Name, ev.Dosage, ev.Time),
	}
}

// Dispatcher fans one event out to a set of senders concurrently. Each
// send gets its own bounded timeout; outcomes are collected for logging
// and metrics only. Nothing a sender does can escape the fan-out: a panic
// becomes a failed result.
type Dispatcher struct {
	timeout time.Duration
	logger  logger.Logger
	obs     *observability.Observability
}

func NewDispatcher(timeout time.Duration, log logger.Logger, obs *observability.Observability) *Dispatcher {
	return &Dispatcher{
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "fanout"}),
		obs:     obs,
	}
}

// Dispatch sends the event to every sender and returns the per-channel
// results once all attempts have completed or timed out. Channels run
// independently: one failure never suppresses the others.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, to channels.Recipient, senders []channels.Sender) []channels.Result {
	start := time.Now()
	msg := BuildMessage(ev)

	results := make([]channels.Result, len(senders))
	var wg sync.WaitGroup

	for i, sender := range senders {
		wg.Add(1)
		go func(i int, sender channels.Sender) {
			defer wg.Done()
			results[i] = d.sendOne(ctx, sender, to, msg)
		}(i, sender)
	}
	wg.Wait()

	elapsed := time.Since(start)
	metrics.FanOutDuration.WithLabelValues(ev.Trigger).Observe(elapsed.Seconds())
	if d.obs != nil {
		d.obs.RecordFanOutDuration(ctx, elapsed, ev.Trigger)
	}

	for _, res := range results {
		metrics.ChannelSends.WithLabelValues(res.Channel, string(res.Outcome)).Inc()
		if d.obs != nil {
			d.obs.RecordSend(ctx, res.Channel, string(res.Outcome))
		}

		fields := map[string]interface{}{
			"eventId":      ev.ID,
			"medicationId": ev.MedicationID,
			"channel":      res.Channel,
			"outcome":      string(res.Outcome),
			"detail":       res.Detail,
		}
		switch res.Outcome {
		case channels.OutcomeFailed:
			d.logger.Error("channel send failed", fields)
		case channels.OutcomeSkipped:
			d.logger.Warn("channel send skipped", fields)
		default:
			d.logger.Info("channel send delivered", fields)
		}
	}

	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, sender channels.Sender, to channels.Recipient, msg channels.Message) (res channels.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = channels.Result{
				Channel: sender.Name(),
				Outcome: channels.OutcomeFailed,
				Detail:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return sender.Send(sendCtx, to, msg)
}
