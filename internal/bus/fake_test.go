package bus_test

import (
	"fmt"
	"time"

	"github.com/lumentide/ledbus/internal/bus"
	"github.com/lumentide/ledbus/internal/chipset"
)

// fakeDriver is a scriptable in-memory driver. Poll returns status and
// runs the optional onPoll hook first, so tests can flip state after a
// given number of polls. Show releases everything enqueued.
type fakeDriver struct {
	name   string
	caps   bus.Capabilities
	accept func(*bus.ChannelData) bool

	status bus.Status
	polls  int
	onPoll func(d *fakeDriver)

	enqueued []*bus.ChannelData
	shows    int
	showSeq  *[]string
}

func newFake(name string) *fakeDriver {
	return &fakeDriver{
		name:   name,
		caps:   bus.Capabilities{Clockless: true, SPI: true},
		status: bus.Status{State: bus.StateReady},
	}
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Capabilities() bus.Capabilities { return d.caps }

func (d *fakeDriver) CanHandle(data *bus.ChannelData) bool {
	if d.accept != nil {
		return d.accept(data)
	}
	switch data.Variant().(type) {
	case chipset.Clockless:
		return d.caps.Clockless
	case chipset.SPI:
		return d.caps.SPI
	}
	return false
}

func (d *fakeDriver) Enqueue(data *bus.ChannelData) {
	data.Acquire()
	d.enqueued = append(d.enqueued, data)
}

func (d *fakeDriver) Show() {
	d.shows++
	if d.showSeq != nil {
		*d.showSeq = append(*d.showSeq, d.name)
	}
	for _, data := range d.enqueued {
		data.Release()
	}
	d.enqueued = nil
}

func (d *fakeDriver) Poll() bus.Status {
	d.polls++
	if d.onPoll != nil {
		d.onPoll(d)
	}
	return d.status
}

// fakeClock only moves when something sleeps, which makes every wait
// loop deterministic.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) elapsed() time.Duration { return c.now.Sub(time.Unix(1000, 0)) }

// recListener records channel lifecycle callbacks.
type recListener struct {
	created    []string
	configured []string
	encoded    []string
	enqueued   []string
	dropped    []string
	removed    []string
}

func (r *recListener) OnChannelCreated(channel string) {
	r.created = append(r.created, channel)
}

func (r *recListener) OnChannelConfigured(channel string) {
	r.configured = append(r.configured, channel)
}

func (r *recListener) OnChannelEncoded(channel string, bytes int) {
	r.encoded = append(r.encoded, fmt.Sprintf("%s:%d", channel, bytes))
}

func (r *recListener) OnChannelEnqueued(channel, driver string) {
	r.enqueued = append(r.enqueued, fmt.Sprintf("%s->%s", channel, driver))
}

func (r *recListener) OnChannelDropped(channel, reason string) {
	r.dropped = append(r.dropped, fmt.Sprintf("%s:%s", channel, reason))
}

func (r *recListener) OnChannelRemoved(channel string) {
	r.removed = append(r.removed, channel)
}

func clocklessData(name string) *bus.ChannelData {
	return bus.NewChannelData(name, chipset.Clockless{Pin: 18, Timing: chipset.WS2812})
}

func spiData(name string) *bus.ChannelData {
	return bus.NewChannelData(name, chipset.SPI{DataPin: 10, ClockPin: 11, Protocol: chipset.APA102})
}
