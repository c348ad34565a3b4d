package nrz_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/lumentide/ledbus/internal/bus"
	"github.com/lumentide/ledbus/internal/chipset"
	"github.com/lumentide/ledbus/internal/drivers/nrz"
	"github.com/lumentide/ledbus/internal/encode"
)

func clocklessChannel(t *testing.T, mgr *bus.Manager, count int, timing chipset.Timing) *bus.Channel {
	t.Helper()
	return bus.NewChannel(mgr, bus.ChannelConfig{
		Name:    "strip",
		Count:   count,
		Chipset: chipset.Clockless{Pin: 18, Timing: timing},
	})
}

func TestCanHandleTimingWindow(t *testing.T) {
	var buf bytes.Buffer
	d, err := nrz.New(spitest.NewRecordRaw(&buf), 4, zerolog.Nop())
	require.NoError(t, err)

	for _, timing := range []chipset.Timing{
		chipset.WS2812, chipset.WS2811, chipset.SK6812, chipset.UCS1903,
	} {
		data := bus.NewChannelData(timing.Name, chipset.Clockless{Pin: 18, Timing: timing})
		assert.True(t, d.CanHandle(data), timing.Name)
	}

	fast := chipset.Timing{Name: "FAST", T1: 200, T2: 200, T3: 200}
	assert.False(t, d.CanHandle(bus.NewChannelData("fast", chipset.Clockless{Pin: 18, Timing: fast})))

	spiVar := chipset.SPI{DataPin: 10, ClockPin: 11, Protocol: chipset.APA102}
	assert.False(t, d.CanHandle(bus.NewChannelData("ring", spiVar)))
	assert.False(t, d.CanHandle(nil))
}

func TestShowWritesAndReleases(t *testing.T) {
	var buf bytes.Buffer
	d, err := nrz.New(spitest.NewRecordRaw(&buf), 4, zerolog.Nop())
	require.NoError(t, err)

	mgr := bus.NewManager(zerolog.Nop())
	mgr.AddDriver(50, d)
	ch := clocklessChannel(t, mgr, 4, chipset.WS2812)
	px := ch.Pixels()
	for i := range px {
		px[i] = encode.Pixel{R: 255}
	}

	require.True(t, ch.Publish())
	assert.Equal(t, bus.StateBusy, d.Poll().State)

	d.Show()
	assert.False(t, ch.Data().InUse())
	assert.Equal(t, bus.StateReady, d.Poll().State)
	assert.NotZero(t, buf.Len(), "expanded frame must hit the wire")
}

func TestLengthMismatchFails(t *testing.T) {
	var buf bytes.Buffer
	d, err := nrz.New(spitest.NewRecordRaw(&buf), 4, zerolog.Nop())
	require.NoError(t, err)

	mgr := bus.NewManager(zerolog.Nop())
	mgr.AddDriver(50, d)
	ch := clocklessChannel(t, mgr, 3, chipset.WS2812)

	require.True(t, ch.Publish())
	d.Show()

	st := d.Poll()
	require.Equal(t, bus.StateError, st.State)
	assert.Contains(t, st.Err, "payload 9 bytes, want 12")
	assert.False(t, ch.Data().InUse())
}

func TestFaultClearsAfterGoodShow(t *testing.T) {
	var buf bytes.Buffer
	d, err := nrz.New(spitest.NewRecordRaw(&buf), 4, zerolog.Nop())
	require.NoError(t, err)

	mgr := bus.NewManager(zerolog.Nop())
	mgr.AddDriver(50, d)
	bad := clocklessChannel(t, mgr, 3, chipset.WS2812)
	good := clocklessChannel(t, mgr, 4, chipset.WS2812)

	require.True(t, bad.Publish())
	d.Show()
	require.Equal(t, bus.StateError, d.Poll().State)

	require.True(t, good.Publish())
	d.Show()
	assert.Equal(t, bus.StateReady, d.Poll().State)
}
