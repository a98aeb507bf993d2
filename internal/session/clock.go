package session

import "time"

// TimerHandle is a cancellable timer owned by the component that armed it.
type TimerHandle interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// Clock abstracts wall time and timer scheduling so the runtime, the
// autosave debounce, and the integrity monitor are all testable with a
// fake clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) TimerHandle
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) TimerHandle {
	return time.AfterFunc(d, fn)
}

// SystemClock is the production Clock backed by the time package.
var SystemClock Clock = systemClock{}
