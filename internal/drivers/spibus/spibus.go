// Package spibus transmits SPI-clocked chipsets (APA102, SK9822,
// WS2801, LPD8806, P9813) over a real SPI port. Payloads arrive fully
// framed, so the driver pushes them to the wire unchanged.
package spibus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/lumentide/ledbus/internal/bus"
	"github.com/lumentide/ledbus/internal/chipset"
)

// DefaultSpeed is used when the config does not pin a bus clock.
const DefaultSpeed = 4 * physic.MegaHertz

// Driver writes queued payloads from a background goroutine so the
// render loop keeps going while the wire drains. State moves READY ->
// BUSY on enqueue, DRAINING once Show hands the batch to the writer,
// and back to READY when Poll observes completion and releases the
// buffers.
type Driver struct {
	log  zerolog.Logger
	port spi.PortCloser
	conn spi.Conn

	queue    []*bus.ChannelData
	inflight []*bus.ChannelData

	writing atomic.Bool
	done    atomic.Bool

	mu       sync.Mutex
	writeErr error

	lastErr string
}

// New connects the port at the given speed, mode 0, 8 bits per word.
// The driver owns the port and closes it on Close.
func New(port spi.PortCloser, speed physic.Frequency, lg zerolog.Logger) (*Driver, error) {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect: %w", err)
	}
	return &Driver{log: lg, port: port, conn: conn}, nil
}

func (d *Driver) Name() string { return "SPI" }

func (d *Driver) Capabilities() bus.Capabilities {
	return bus.Capabilities{SPI: true}
}

// CanHandle accepts any SPI chipset. The channel's requested clock is
// advisory; the port runs at the speed it was connected with.
func (d *Driver) CanHandle(data *bus.ChannelData) bool {
	if data == nil {
		return false
	}
	_, ok := data.Variant().(chipset.SPI)
	return ok
}

func (d *Driver) Enqueue(data *bus.ChannelData) {
	data.Acquire()
	d.queue = append(d.queue, data)
}

// Show hands the queued batch to the writer goroutine. If a previous
// batch is still draining it blocks until that transfer lands, which
// keeps at most one batch on the wire.
func (d *Driver) Show() {
	if len(d.queue) == 0 {
		return
	}
	for d.writing.Load() {
		d.Poll()
		time.Sleep(bus.PollInterval)
	}

	d.inflight = d.queue
	d.queue = nil
	payloads := make([][]byte, len(d.inflight))
	for i, data := range d.inflight {
		payloads[i] = data.Bytes()
	}

	d.done.Store(false)
	d.writing.Store(true)
	go d.transmit(payloads)
}

func (d *Driver) transmit(payloads [][]byte) {
	var err error
	for _, p := range payloads {
		if len(p) == 0 {
			continue
		}
		if txErr := d.conn.Tx(p, nil); txErr != nil {
			err = fmt.Errorf("spi write: %w", txErr)
			break
		}
	}
	d.mu.Lock()
	d.writeErr = err
	d.mu.Unlock()
	d.done.Store(true)
}

func (d *Driver) Poll() bus.Status {
	if d.writing.Load() {
		if !d.done.Load() {
			return bus.Status{State: bus.StateDraining}
		}
		for _, data := range d.inflight {
			data.Release()
		}
		d.inflight = nil
		d.mu.Lock()
		err := d.writeErr
		d.writeErr = nil
		d.mu.Unlock()
		d.writing.Store(false)
		d.done.Store(false)
		if err != nil {
			d.lastErr = err.Error()
			d.log.Error().Err(err).Msg("spi transmission failed")
		} else {
			d.lastErr = ""
		}
	}
	if len(d.queue) > 0 {
		return bus.Status{State: bus.StateBusy}
	}
	if d.lastErr != "" {
		return bus.Status{State: bus.StateError, Err: d.lastErr}
	}
	return bus.Status{State: bus.StateReady}
}

// Close releases the SPI port. Callers should drain via Poll first.
func (d *Driver) Close() error {
	return d.port.Close()
}
