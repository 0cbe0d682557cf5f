// internal/scheduler/scheduler.go
package scheduler

import (
	"strings"
	"sync"
	"time"

	"medreminder/internal/common/errors"
	"medreminder/internal/common/logger"
	"medreminder/internal/common/metrics"
	"medreminder/internal/medication"
)

// Dispatcher receives wake-ups. It runs in the timer goroutine and must
// not block the scheduler: implementations detach the actual channel
// fan-out and never return errors into the timer loop.
type Dispatcher interface {
	DispatchWake(med medication.Medication, slot string, firedAt time.Time)
}

// entry is one armed wake-up. The firing closure captures its own entry
// pointer and proceeds only while the table still maps its key to it, so
// a Schedule or Cancel that replaced the entry silences stale firings.
type entry struct {
	timer Timer
	med   medication.Medication
	slot  string
	at    time.Time
}

// Scheduler owns the in-memory timer table: one pending wake-up per
// (medication id, time-of-day) pair. Timers are derived, rebuildable
// state; the store remains the source of truth for what is scheduled.
//
// Times are evaluated against the process-local wall clock. No timezone
// normalization is performed; behavior across DST transitions is
// undefined.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[string]*entry
	clock    Clock
	dispatch Dispatcher
	logger   logger.Logger
}

func New(clock Clock, dispatch Dispatcher, log logger.Logger) *Scheduler {
	return &Scheduler{
		timers:   make(map[string]*entry),
		clock:    clock,
		dispatch: dispatch,
		logger:   log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

func timerKey(medicationID, slot string) string {
	return medicationID + "|" + slot
}

// Schedule arms one wake-up per reminder time at its next future
// occurrence. Any wake-ups already pending for this medication are
// cancelled first, so re-scheduling is idempotent. Malformed input is
// rejected before any timer is touched.
func (s *Scheduler) Schedule(med medication.Medication) error {
	if len(med.ReminderTimes) == 0 {
		return errors.NewEmptyReminderTimesError(med.ID)
	}
	for _, slot := range med.ReminderTimes {
		if _, _, err := medication.ParseClockTime(slot); err != nil {
			return errors.NewInvalidReminderTimeError(med.ID, slot)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(med.ID)

	now := s.clock.Now()
	for _, slot := range med.ReminderTimes {
		next, _ := medication.NextOccurrence(now, slot)
		s.armLocked(med, slot, next)
	}

	s.logger.Info("medication scheduled", map[string]interface{}{
		"medicationId": med.ID,
		"times":        med.ReminderTimes,
	})
	return nil
}

// Cancel stops every pending wake-up for the medication. After it
// returns no further notifications are produced for this id, barring a
// fan-out already in flight.
func (s *Scheduler) Cancel(medicationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(medicationID)

	s.logger.Info("medication cancelled", map[string]interface{}{
		"medicationId": medicationID,
	})
}

// StopAll cancels every pending wake-up, used during shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
	}
	metrics.TimersActive.Set(0)
}

// PendingCount returns the number of armed wake-ups.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) cancelLocked(medicationID string) {
	prefix := medicationID + "|"
	for key, e := range s.timers {
		if strings.HasPrefix(key, prefix) {
			e.timer.Stop()
			delete(s.timers, key)
		}
	}
	metrics.TimersActive.Set(float64(len(s.timers)))
}

// armLocked replaces any pending wake-up for the (medication, slot) key
// with one firing at the given instant.
func (s *Scheduler) armLocked(med medication.Medication, slot string, at time.Time) {
	key := timerKey(med.ID, slot)
	if old, ok := s.timers[key]; ok {
		old.timer.Stop()
	}

	e := &entry{med: med, slot: slot, at: at}
	e.timer = s.clock.AfterFunc(at.Sub(s.clock.Now()), func() {
		s.onWake(key, e)
	})
	s.timers[key] = e
	metrics.TimersActive.Set(float64(len(s.timers)))
}

// onWake re-arms at exactly at+24h before dispatching, so the cadence is
// a fixed offset from the instant that fired and a slow fan-out cannot
// drift, double-fire, or skip a day.
func (s *Scheduler) onWake(key string, fired *entry) {
	s.mu.Lock()
	current, ok := s.timers[key]
	if !ok || current != fired {
		// Cancelled or replaced after the timer fired.
		s.mu.Unlock()
		return
	}
	s.armLocked(fired.med, fired.slot, fired.at.Add(24*time.Hour))
	s.mu.Unlock()

	metrics.RemindersFired.WithLabelValues("scheduled").Inc()
	s.dispatch.DispatchWake(fired.med, fired.slot, fired.at)
}
