// Package nrz transmits clockless chipsets (WS2812 and friends) by
// NRZ-expanding each bit over an SPI port. Transfers are synchronous:
// the whole frame is on the wire before Show returns.
package nrz

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"

	"github.com/lumentide/ledbus/internal/bus"
	"github.com/lumentide/ledbus/internal/chipset"
)

// Bit periods this expansion scheme reproduces acceptably. Chips
// outside the window need a different backend.
const (
	minBitPeriod = 1000 * time.Nanosecond
	maxBitPeriod = 2500 * time.Nanosecond
)

// 800kHz chips, 3x oversample plus headroom.
const bitRateKHz = 800

// Driver wraps an nrzled device sized for a fixed pixel count. Every
// channel it accepts must encode to exactly pixels*3 bytes.
type Driver struct {
	log    zerolog.Logger
	dev    *nrzled.Dev
	pixels int

	queue   []*bus.ChannelData
	lastErr string
}

func New(port spi.Port, pixels int, lg zerolog.Logger) (*Driver, error) {
	opts := nrzled.Opts{
		NumPixels: pixels,
		Channels:  3,
		Freq:      ((bitRateKHz * 3) + 100) * physic.KiloHertz,
	}
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &Driver{log: lg, dev: dev, pixels: pixels}, nil
}

func (d *Driver) Name() string { return "NRZ" }

func (d *Driver) Capabilities() bus.Capabilities {
	return bus.Capabilities{Clockless: true}
}

func (d *Driver) CanHandle(data *bus.ChannelData) bool {
	if data == nil {
		return false
	}
	cl, ok := data.Variant().(chipset.Clockless)
	if !ok {
		return false
	}
	p := cl.Timing.Period()
	return p >= minBitPeriod && p <= maxBitPeriod
}

func (d *Driver) Enqueue(data *bus.ChannelData) {
	data.Acquire()
	d.queue = append(d.queue, data)
}

func (d *Driver) Show() {
	if len(d.queue) == 0 {
		return
	}
	var err error
	for _, data := range d.queue {
		payload := data.Bytes()
		if want := d.pixels * 3; len(payload) != want {
			err = fmt.Errorf("channel %q: payload %d bytes, want %d",
				data.Channel(), len(payload), want)
		} else if _, werr := d.dev.Write(payload); werr != nil {
			err = fmt.Errorf("nrz write: %w", werr)
		}
		data.Release()
	}
	d.queue = d.queue[:0]
	if err != nil {
		d.lastErr = err.Error()
		d.log.Error().Err(err).Msg("nrz transmission failed")
	} else {
		d.lastErr = ""
	}
}

func (d *Driver) Poll() bus.Status {
	if len(d.queue) > 0 {
		return bus.Status{State: bus.StateBusy}
	}
	if d.lastErr != "" {
		return bus.Status{State: bus.StateError, Err: d.lastErr}
	}
	return bus.Status{State: bus.StateReady}
}

// Close blanks the strip. The SPI port stays open, its owner closes it.
func (d *Driver) Close() error {
	return d.dev.Halt()
}
