package bus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lumentide/ledbus/internal/bus"
)

func TestWaitReturnsImmediatelyWhenConditionHolds(t *testing.T) {
	clock := newFakeClock()
	pumps := 0
	w := bus.Waiter{Clock: clock, Pump: func() { pumps++ }}

	assert.True(t, w.Wait(func() bool { return true }, time.Second))
	assert.Equal(t, 0, pumps, "no pumping before the first check")
	assert.Equal(t, time.Duration(0), clock.elapsed())
}

func TestWaitPumpsBetweenChecks(t *testing.T) {
	clock := newFakeClock()
	pumps := 0
	w := bus.Waiter{Clock: clock, Pump: func() { pumps++ }}

	ok := w.Wait(func() bool { return pumps >= 3 }, 0)
	assert.True(t, ok, "zero timeout waits until the condition holds")
	assert.Equal(t, 3, pumps)
}

func TestWaitTimeoutIsDeterministic(t *testing.T) {
	clock := newFakeClock()
	checks := 0
	w := bus.Waiter{Clock: clock}

	ok := w.Wait(func() bool { checks++; return false }, 10*time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, 10*time.Millisecond, clock.elapsed(), "clock only advances by poll sleeps")
	assert.Equal(t, 101, checks, "one check per 100µs interval plus the deadline check")
}

func TestWaitCustomInterval(t *testing.T) {
	clock := newFakeClock()
	checks := 0
	w := bus.Waiter{Clock: clock, Interval: time.Millisecond}

	w.Wait(func() bool { checks++; return false }, 10*time.Millisecond)
	assert.Equal(t, 11, checks)
}

func TestWaitReadyHelpers(t *testing.T) {
	clock := newFakeClock()
	w := bus.Waiter{Clock: clock}

	drv := newFake("D")
	drv.status = bus.Status{State: bus.StateBusy}
	drv.onPoll = func(d *fakeDriver) {
		if d.polls >= 2 {
			d.status = bus.Status{State: bus.StateDraining}
		}
	}

	assert.True(t, w.WaitReadyOrDraining(drv, time.Second))
	assert.False(t, w.WaitReady(drv, 5*time.Millisecond), "DRAINING does not satisfy a READY wait")
}

func TestWaiterZeroValueUsesWallClock(t *testing.T) {
	var w bus.Waiter
	assert.True(t, w.Wait(func() bool { return true }, time.Millisecond))
}
