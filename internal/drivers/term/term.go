// Package term previews clockless strips as a row of colored cells in
// the terminal. It stands in for hardware on development machines and
// as the last resort when no port opens.
package term

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"

	"github.com/lumentide/ledbus/internal/bus"
	"github.com/lumentide/ledbus/internal/chipset"
)

const (
	defaultWidth = 100

	// ~20 redraws per second keeps the terminal readable at any loop
	// rate.
	defaultThrottle = 50 * time.Millisecond
)

// Driver paints each queued channel as one terminal line per frame.
// Payloads carry wire order already; the preview assumes the common
// clockless GRB layout when turning bytes back into colors. Redraws
// are throttled, skipped frames are released undrawn.
type Driver struct {
	log      zerolog.Logger
	drawer   display.Drawer
	queue    []*bus.ChannelData
	lastErr  string
	throttle time.Duration
	lastDraw time.Time
}

func New(width int, lg zerolog.Logger) *Driver {
	if width <= 0 {
		width = defaultWidth
	}
	return newWithDrawer(screen.New(width), lg)
}

func newWithDrawer(d display.Drawer, lg zerolog.Logger) *Driver {
	return &Driver{log: lg, drawer: d, throttle: defaultThrottle}
}

func (d *Driver) Name() string { return "TERM" }

func (d *Driver) Capabilities() bus.Capabilities {
	return bus.Capabilities{Clockless: true}
}

func (d *Driver) CanHandle(data *bus.ChannelData) bool {
	if data == nil {
		return false
	}
	_, ok := data.Variant().(chipset.Clockless)
	return ok
}

func (d *Driver) Enqueue(data *bus.ChannelData) {
	data.Acquire()
	d.queue = append(d.queue, data)
}

func (d *Driver) Show() {
	if len(d.queue) == 0 {
		return
	}
	now := time.Now()
	if d.lastDraw.Add(d.throttle).After(now) {
		for _, data := range d.queue {
			data.Release()
		}
		d.queue = d.queue[:0]
		return
	}
	d.lastDraw = now
	var err error
	for _, data := range d.queue {
		img := frameImage(data.Bytes())
		if derr := d.drawer.Draw(d.drawer.Bounds(), img, image.Point{}); derr != nil {
			err = derr
		} else {
			fmt.Printf("\n")
		}
		data.Release()
	}
	d.queue = d.queue[:0]
	if err != nil {
		d.lastErr = err.Error()
		d.log.Error().Err(err).Msg("terminal draw failed")
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

func frameImage(payload []byte) *image.NRGBA {
	n := len(payload) / 3
	img := image.NewNRGBA(image.Rect(0, 0, n, 1))
	for i := 0; i < n; i++ {
		g, r, b := payload[i*3], payload[i*3+1], payload[i*3+2]
		img.SetNRGBA(i, 0, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	return img
}
