// Package stub provides an accept-all driver whose frames go nowhere.
// It keeps the render loop honest on machines without LED hardware and
// gives tests a backend with no timing behavior.
package stub

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lumentide/ledbus/internal/bus"
)

// Driver accepts every channel and discards the payload at Show.
// Buffers are held from Enqueue to Show, so the borrow protocol
// is exercised exactly like on real hardware.
type Driver struct {
	log    zerolog.Logger
	once   sync.Once
	queue  []*bus.ChannelData
	frames uint64
}

func New(lg zerolog.Logger) *Driver {
	return &Driver{log: lg}
}

func (d *Driver) Name() string { return "STUB" }

func (d *Driver) Capabilities() bus.Capabilities {
	return bus.Capabilities{Clockless: true, SPI: true}
}

func (d *Driver) CanHandle(data *bus.ChannelData) bool { return data != nil }

func (d *Driver) Enqueue(data *bus.ChannelData) {
	d.once.Do(func() {
		d.log.Debug().Msg("stub driver active, frames are discarded")
	})
	data.Acquire()
	d.queue = append(d.queue, data)
}

func (d *Driver) Show() {
	if len(d.queue) == 0 {
		return
	}
	for _, data := range d.queue {
		data.Release()
	}
	d.queue = d.queue[:0]
	d.frames++
}

func (d *Driver) Poll() bus.Status {
	if len(d.queue) > 0 {
		return bus.Status{State: bus.StateBusy}
	}
	return bus.Status{State: bus.StateReady}
}

// Frames reports how many shows completed.
func (d *Driver) Frames() uint64 { return d.frames }
