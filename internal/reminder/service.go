// internal/reminder/service.go
package reminder

import (
	"context"
	"time"

	"medreminder/internal/channels"
	"medreminder/internal/common/errors"
	"medreminder/internal/common/logger"
	"medreminder/internal/common/metrics"
	"medreminder/internal/medication"
	"medreminder/internal/notify"
	"medreminder/internal/profile"
	"medreminder/internal/scheduler"
)

// wakeTimeout bounds one complete fan-out including contact resolution.
// Individual channel calls carry their own shorter timeout inside the
// dispatcher; this is the outer guard.
const wakeTimeout = 30 * time.Second

// ContactResolver resolves a user id to recipient identifiers.
type ContactResolver interface {
	Resolve(ctx context.Context, userID string) (*profile.Contact, error)
}

// HistoryRecorder persists fan-out outcomes for the user-facing layer.
type HistoryRecorder interface {
	Record(ctx context.Context, ev notify.Event, results []channels.Result)
}

// Service ties the store, the scheduler, and the fan-out together. The
// store is the source of truth for which medications are scheduled; the
// service rebuilds the timer table from it at startup and keeps it
// current from the change feed.
type Service struct {
	store      medication.Store
	feed       medication.Feed
	resolver   ContactResolver
	sched      *scheduler.Scheduler
	dispatcher *notify.Dispatcher
	senders    map[string]channels.Sender
	history    HistoryRecorder
	logger     logger.Logger
	errHandler *errors.ErrorHandler
}

func NewService(
	store medication.Store,
	feed medication.Feed,
	resolver ContactResolver,
	dispatcher *notify.Dispatcher,
	senders []channels.Sender,
	history HistoryRecorder,
	log logger.Logger,
) *Service {
	byName := make(map[string]channels.Sender, len(senders))
	for _, s := range senders {
		byName[s.Name()] = s
	}

	svcLog := log.WithFields(map[string]interface{}{"component": "reminder-service"})
	svc := &Service{
		store:      store,
		feed:       feed,
		resolver:   resolver,
		dispatcher: dispatcher,
		senders:    byName,
		history:    history,
		logger:     svcLog,
		errHandler: errors.NewErrorHandler(svcLog),
	}
	return svc
}

// SetScheduler wires the scheduler after construction. The scheduler
// needs the service as its Dispatcher, so the two are connected in a
// second step.
func (s *Service) SetScheduler(sched *scheduler.Scheduler) {
	s.sched = sched
}

// Start replays every active medication into the scheduler and begins
// consuming the change feed. In-memory timers are lost on restart; the
// replay is the recovery contract, skippable for deployments that only
// follow the feed.
func (s *Service) Start(ctx context.Context, replay bool) error {
	if replay {
		meds, err := s.store.ListAllActive(ctx)
		if err != nil {
			return err
		}

		scheduled := 0
		for _, med := range meds {
			if err := s.sched.Schedule(med); err != nil {
				s.errHandler.Handle(err, map[string]interface{}{"medicationId": med.ID})
				continue
			}
			scheduled++
		}
		s.logger.Info("replayed active medications", map[string]interface{}{
			"total":     len(meds),
			"scheduled": scheduled,
		})
	}

	events, err := s.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	go s.watch(ctx, events)

	return nil
}

// watch applies change events until ctx is cancelled, resubscribing if
// the feed drops.
func (s *Service) watch(ctx context.Context, events <-chan medication.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Warn("change feed closed, resubscribing", nil)
				var err error
				events, err = s.resubscribe(ctx)
				if err != nil {
					return
				}
				continue
			}
			s.apply(ev)
		}
	}
}

func (s *Service) resubscribe(ctx context.Context) (<-chan medication.ChangeEvent, error) {
	delay := 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		events, err := s.feed.Subscribe(ctx)
		if err == nil {
			return events, nil
		}
		s.logger.Warn("change feed resubscribe failed", map[string]interface{}{
			"error":       err.Error(),
			"nextRetryIn": delay.String(),
		})
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// apply keeps the timer table in sync with one store write.
func (s *Service) apply(ev medication.ChangeEvent) {
	switch ev.Kind {
	case medication.ChangeUpsert:
		if ev.Medication == nil {
			s.logger.Warn("upsert event without medication payload", map[string]interface{}{
				"medicationId": ev.MedicationID,
			})
			return
		}
		if !ev.Medication.IsActive {
			s.sched.Cancel(ev.MedicationID)
			return
		}
		if err := s.sched.Schedule(*ev.Medication); err != nil {
			s.errHandler.Handle(err, map[string]interface{}{"medicationId": ev.MedicationID})
		}
	case medication.ChangeDelete:
		s.sched.Cancel(ev.MedicationID)
	default:
		s.logger.Warn("unknown change event kind", map[string]interface{}{
			"kind": string(ev.Kind),
		})
	}
}

// DispatchWake implements scheduler.Dispatcher. It runs detached from
// the timer table: the scheduler has already re-armed before calling,
// and nothing here flows back into its control flow.
func (s *Service) DispatchWake(med medication.Medication, slot string, firedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), wakeTimeout)
	defer cancel()

	ev := notify.NewEvent(med.ID, med.UserID, med.Name, med.Dosage, slot, firedAt, "scheduled")
	s.fanOut(ctx, ev, med)
}

// SendTest fires one immediate fan-out for a medication and returns the
// per-channel outcomes so the caller can surface an aggregate result.
func (s *Service) SendTest(ctx context.Context, medicationID string) ([]channels.Result, error) {
	med, err := s.store.GetMedication(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	slot := now.Format("15:04")
	metrics.RemindersFired.WithLabelValues("test").Inc()

	ev := notify.NewEvent(med.ID, med.UserID, med.Name, med.Dosage, slot, now, "test")
	return s.fanOut(ctx, ev, *med), nil
}

func (s *Service) fanOut(ctx context.Context, ev notify.Event, med medication.Medication) []channels.Result {
	enabled := s.sendersFor(med)
	if len(enabled) == 0 {
		s.logger.Warn("no enabled channels for medication", map[string]interface{}{
			"medicationId": med.ID,
		})
		return nil
	}

	recipient := channels.Recipient{
		UserID:           med.UserID,
		WhatsAppOverride: med.WhatsAppPhone,
	}

	contact, err := s.resolver.Resolve(ctx, med.UserID)
	if err != nil {
		// Senders treat an empty contact as missing prerequisites and
		// record skips; the wake-up is still considered handled.
		s.errHandler.Handle(err, map[string]interface{}{"medicationId": med.ID})
	} else {
		recipient.Contact = *contact
	}

	results := s.dispatcher.Dispatch(ctx, ev, recipient, enabled)

	if s.history != nil {
		s.history.Record(ctx, ev, results)
	}
	return results
}

// sendersFor intersects the medication's channel preferences with the
// channels this deployment has configured.
func (s *Service) sendersFor(med medication.Medication) []channels.Sender {
	var out []channels.Sender
	for _, name := range med.Channels.Enabled() {
		if sender, ok := s.senders[name]; ok {
			out = append(out, sender)
		}
	}
	return out
}
