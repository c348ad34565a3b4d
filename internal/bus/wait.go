package bus

import "time"

const (
	// PollInterval is the target spacing between condition checks
	// while waiting on driver state.
	PollInterval = 100 * time.Microsecond

	// DefaultWaitTimeout bounds the frame-lifecycle waits.
	DefaultWaitTimeout = time.Second
)

// Clock abstracts time for the busy-poll loops so tests can drive them
// deterministically.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Waiter runs cooperative busy-polls: check the condition, pump any
// queued background work, then sleep out the remainder of the poll
// interval. Everything runs on the caller's goroutine.
type Waiter struct {
	// Clock supplies time; nil means the wall clock.
	Clock Clock
	// Pump runs between checks so timers and transport callbacks make
	// progress while the caller spins. May be nil.
	Pump func()
	// Interval overrides PollInterval when positive.
	Interval time.Duration
}

func (w Waiter) clock() Clock {
	if w.Clock == nil {
		return systemClock{}
	}
	return w.Clock
}

func (w Waiter) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return PollInterval
}

// Wait polls cond until it holds or timeout elapses. A timeout of zero
// or less waits forever. Returns false only on timeout.
func (w Waiter) Wait(cond func() bool, timeout time.Duration) bool {
	clock := w.clock()
	interval := w.interval()

	var deadline time.Time
	if timeout > 0 {
		deadline = clock.Now().Add(timeout)
	}

	for !cond() {
		if timeout > 0 && !clock.Now().Before(deadline) {
			return false
		}
		start := clock.Now()
		if w.Pump != nil {
			w.Pump()
		}
		if rem := interval - clock.Now().Sub(start); rem > 0 {
			clock.Sleep(rem)
		}
	}
	return true
}

// WaitReady waits for a single driver to report READY.
func (w Waiter) WaitReady(d Driver, timeout time.Duration) bool {
	return w.Wait(func() bool { return d.Poll().State == StateReady }, timeout)
}

// WaitReadyOrDraining waits for a single driver to report READY or
// DRAINING.
func (w Waiter) WaitReadyOrDraining(d Driver, timeout time.Duration) bool {
	return w.Wait(func() bool {
		s := d.Poll().State
		return s == StateReady || s == StateDraining
	}, timeout)
}
