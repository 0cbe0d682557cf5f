// internal/scheduler/clock.go
package scheduler

import "time"

// Timer is a cancellable one-shot wake-up handle.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall-clock reads and timer arming so tests can fire
// wake-ups deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
