package bus

import (
	"fmt"
	"sync/atomic"

	"github.com/lumentide/ledbus/internal/chipset"
	"github.com/lumentide/ledbus/internal/encode"
)

var nextChannelID atomic.Int64

// ChannelConfig describes one LED strip output.
type ChannelConfig struct {
	// Name identifies the channel in logs and telemetry. Empty names
	// get a generated channel-<id>.
	Name string
	// Count is the number of pixels on the strip.
	Count int
	// Chipset is the wiring descriptor drivers route on.
	Chipset chipset.Variant
	// Affinity pins the channel to a driver by name. Empty lets the
	// Manager decide per frame.
	Affinity string
	// Encoding holds color order, RGBW mode, gamma and luminance.
	Encoding encode.Options
}

// Channel owns a pixel buffer and a transmission buffer. Publish
// encodes the pixels and enqueues them on a driver chosen through the
// Manager.
//
// Binding is late and by name: the channel remembers which driver it
// last used and revalidates that name against the registry on every
// publish, so a swapped-out or disabled driver is never written to
// through a stale reference.
type Channel struct {
	id       int64
	name     string
	affinity string
	encoding encode.Options
	mgr      *Manager
	data     *ChannelData
	pixels   []encode.Pixel
	driver   string
}

// NewChannel creates a channel on the Manager. No driver is bound
// until the first Publish.
func NewChannel(m *Manager, cfg ChannelConfig) *Channel {
	id := nextChannelID.Add(1)
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("channel-%d", id)
	}
	c := &Channel{
		id:       id,
		name:     name,
		affinity: cfg.Affinity,
		encoding: cfg.Encoding,
		mgr:      m,
		data:     NewChannelData(name, cfg.Chipset),
		pixels:   make([]encode.Pixel, cfg.Count),
	}
	m.notifyCreated(name)
	return c
}

// ID returns the process-unique channel id.
func (c *Channel) ID() int64 { return c.id }

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Len returns the pixel count.
func (c *Channel) Len() int { return len(c.pixels) }

// Affinity returns the pinned driver name, empty when unpinned.
func (c *Channel) Affinity() string { return c.affinity }

// DriverName returns the name of the last driver this channel
// published through, empty before the first successful publish.
func (c *Channel) DriverName() string { return c.driver }

// Pixels returns the live pixel buffer. Render into it, then call
// Publish.
func (c *Channel) Pixels() []encode.Pixel { return c.pixels }

// Data exposes the transmission buffer, mainly for drivers and tests.
func (c *Channel) Data() *ChannelData { return c.data }

// ApplyConfig reconfigures the channel: name, pixel count, wiring,
// affinity and encoding are replaced from cfg. An empty Name keeps the
// current one, a zero Count the current strip length and a nil Chipset
// the current wiring. The driver binding is dropped so the next
// Publish resolves fresh. Refused while a driver holds the buffer.
func (c *Channel) ApplyConfig(cfg ChannelConfig) bool {
	if c.data.InUse() {
		c.mgr.log.Warn().Str("channel", c.name).Msg("reconfigure while buffer held by driver, ignoring")
		return false
	}
	if cfg.Name != "" {
		c.name = cfg.Name
		c.data.channel = cfg.Name
	}
	if cfg.Count > 0 && cfg.Count != len(c.pixels) {
		px := make([]encode.Pixel, cfg.Count)
		copy(px, c.pixels)
		c.pixels = px
	}
	if cfg.Chipset != nil {
		c.data.variant = cfg.Chipset
	}
	c.affinity = cfg.Affinity
	c.encoding = cfg.Encoding
	c.driver = ""
	c.mgr.notifyConfigured(c.name)
	return true
}

// Close retires the channel. If a driver still holds the buffer the
// call waits for the release so the payload is not freed under the
// hardware, then drops the binding and fires the removal event. The
// channel must not be published after Close.
func (c *Channel) Close() {
	if c.data.InUse() && c.driver != "" {
		if d := c.mgr.lookupEnabled(c.driver); d != nil {
			if !c.mgr.Waiter.WaitReady(d, DefaultWaitTimeout) {
				c.mgr.log.Warn().Str("channel", c.name).Str("driver", c.driver).Msg("closing channel while buffer still held")
			}
		}
	}
	c.driver = ""
	c.mgr.notifyRemoved(c.name)
}

// Publish encodes the current pixels and enqueues the transmission
// buffer on a compatible driver. It reports false when the frame was
// dropped: no compatible driver, or the buffer was still held by a
// driver that did not come back READY in time. A failed publish leaves
// the previous payload untouched.
func (c *Channel) Publish() bool {
	if c.data.InUse() {
		c.mgr.log.Warn().Str("channel", c.name).Msg("publish while buffer held by driver, waiting")
		if c.driver == "" {
			c.mgr.log.Error().Str("channel", c.name).Msg("buffer held but no driver bound, dropping frame")
			c.mgr.notifyDropped(c.name, "buffer held, no driver bound")
			return false
		}
		d := c.mgr.lookupEnabled(c.driver)
		if d == nil {
			c.mgr.log.Error().Str("channel", c.name).Str("driver", c.driver).Msg("buffer held by unregistered driver, dropping frame")
			c.mgr.notifyDropped(c.name, "buffer held, driver gone")
			return false
		}
		if !c.mgr.Waiter.WaitReady(d, DefaultWaitTimeout) {
			c.mgr.log.Error().Str("channel", c.name).Str("driver", c.driver).Msg("timed out waiting for buffer release, dropping frame")
			c.mgr.notifyDropped(c.name, "timeout waiting for buffer release")
			return false
		}
	}

	d := c.resolve()
	if d == nil {
		c.driver = ""
		c.mgr.notifyDropped(c.name, "no compatible driver")
		return false
	}
	c.driver = d.Name()

	c.data.payload = encode.AppendFrame(c.data.payload[:0], c.data.variant, c.pixels, c.encoding)
	c.mgr.notifyEncoded(c.name, len(c.data.payload))

	d.Enqueue(c.data)
	c.mgr.notifyEnqueued(c.name, c.driver)
	return true
}

// resolve picks this frame's driver. Affinity channels go through the
// selector every time so enable and exclusive toggles apply
// immediately. Unpinned channels reuse the cached driver name while it
// is still registered, enabled and compatible, and fall back to a
// fresh priority scan otherwise.
func (c *Channel) resolve() Driver {
	if c.affinity != "" {
		return c.mgr.SelectDriverForChannel(c.data, c.affinity)
	}
	if c.driver != "" {
		if d := c.mgr.lookupEnabled(c.driver); d != nil && d.CanHandle(c.data) {
			return d
		}
	}
	return c.mgr.SelectDriverForChannel(c.data, "")
}
