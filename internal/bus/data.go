package bus

import (
	"sync/atomic"

	"github.com/lumentide/ledbus/internal/chipset"
)

// ChannelData is a channel's transmission buffer: the encoded wire
// bytes plus the chipset descriptor drivers use to judge compatibility.
//
// The buffer is single-owner. While a driver holds it (between Acquire
// on enqueue and Release after transmission) the channel must not
// touch the payload; the in-use flag is the only synchronization
// between the render side and a driver's completion path.
type ChannelData struct {
	channel string
	variant chipset.Variant
	payload []byte
	inUse   atomic.Bool
}

// NewChannelData creates an empty transmission buffer for a channel.
func NewChannelData(channel string, v chipset.Variant) *ChannelData {
	return &ChannelData{channel: channel, variant: v}
}

// Channel returns the owning channel's name.
func (d *ChannelData) Channel() string { return d.channel }

// Variant returns the chipset descriptor for driver routing.
func (d *ChannelData) Variant() chipset.Variant { return d.variant }

// Bytes returns the encoded payload. Drivers read it between Acquire
// and Release; channels rewrite it only while the buffer is free.
func (d *ChannelData) Bytes() []byte { return d.payload }

// SetBytes replaces the payload. Callers staging data outside a
// Channel must not do this while the buffer is in use.
func (d *ChannelData) SetBytes(b []byte) { d.payload = b }

// InUse reports whether a driver currently holds the buffer.
func (d *ChannelData) InUse() bool { return d.inUse.Load() }

// Acquire marks the buffer as borrowed by a driver.
func (d *ChannelData) Acquire() { d.inUse.Store(true) }

// Release returns the buffer to its channel. Only the driver that
// acquired it may release it, once the hardware is done reading.
func (d *ChannelData) Release() { d.inUse.Store(false) }
