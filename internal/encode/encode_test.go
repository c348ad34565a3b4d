package encode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/lumentide/ledbus/internal/chipset"
	"github.com/lumentide/ledbus/internal/encode"
)

func spiVariant(p chipset.Protocol) chipset.Variant {
	return chipset.SPI{DataPin: 10, ClockPin: 11, Protocol: p, Speed: 4 * physic.MegaHertz}
}

func TestColorOrder(t *testing.T) {
	p := encode.Pixel{R: 1, G: 2, B: 3}
	assert.Equal(t, [3]byte{1, 2, 3}, encode.OrderRGB.Apply(p))
	assert.Equal(t, [3]byte{2, 1, 3}, encode.OrderGRB.Apply(p))
	assert.Equal(t, [3]byte{3, 2, 1}, encode.OrderBGR.Apply(p))

	o, err := encode.ParseOrder("grb")
	require.NoError(t, err)
	assert.Equal(t, encode.OrderGRB, o)
	assert.Equal(t, "GRB", o.String())

	_, err = encode.ParseOrder("RGBW")
	assert.Error(t, err)
}

func TestRGBWSplit(t *testing.T) {
	p := encode.Pixel{R: 100, G: 150, B: 50}

	got, w := encode.RGBWNone.Split(p)
	assert.Equal(t, p, got)
	assert.Equal(t, uint8(0), w)

	got, w = encode.RGBWNullWhite.Split(p)
	assert.Equal(t, p, got)
	assert.Equal(t, uint8(0), w)

	got, w = encode.RGBWExact.Split(p)
	assert.Equal(t, encode.Pixel{R: 50, G: 100, B: 0}, got)
	assert.Equal(t, uint8(50), w)

	got, w = encode.RGBWBoosted.Split(p)
	assert.Equal(t, p, got)
	assert.Equal(t, uint8(50), w)
}

func TestClocklessFrame(t *testing.T) {
	v := chipset.Clockless{Pin: 18, Timing: chipset.WS2812}
	px := []encode.Pixel{{R: 10, G: 20, B: 30}, {R: 40, G: 50, B: 60}}

	got := encode.Frame(v, px, encode.Options{Order: encode.OrderGRB})
	assert.Equal(t, []byte{20, 10, 30, 50, 40, 60}, got)
}

func TestClocklessFrameRGBW(t *testing.T) {
	v := chipset.Clockless{Pin: 18, Timing: chipset.SK6812}
	px := []encode.Pixel{{R: 100, G: 150, B: 50}}

	got := encode.Frame(v, px, encode.Options{Order: encode.OrderGRB, RGBW: encode.RGBWExact})
	assert.Equal(t, []byte{100, 50, 0, 50}, got)
}

func TestAPA102Frame(t *testing.T) {
	px := []encode.Pixel{{R: 10, G: 20, B: 30}, {R: 1, G: 2, B: 3}}
	got := encode.Frame(spiVariant(chipset.APA102), px, encode.Options{Order: encode.OrderBGR})

	require.Len(t, got, 16)
	assert.Equal(t, []byte{0, 0, 0, 0}, got[:4], "start frame")
	assert.Equal(t, []byte{0xFF, 30, 20, 10}, got[4:8], "full luminance, BGR")
	assert.Equal(t, []byte{0xFF, 3, 2, 1}, got[8:12])
	assert.Equal(t, []byte{0, 0, 0, 0}, got[12:], "latch trailer")
}

func TestAPA102Luminance(t *testing.T) {
	px := []encode.Pixel{{R: 255}}
	got := encode.Frame(spiVariant(chipset.SK9822), px, encode.Options{Order: encode.OrderBGR, Luminance: 5})
	assert.Equal(t, byte(0xE0|5), got[4])
}

func TestWS2801Frame(t *testing.T) {
	px := []encode.Pixel{{R: 9, G: 8, B: 7}}
	got := encode.Frame(spiVariant(chipset.WS2801), px, encode.Options{Order: encode.OrderRGB})
	assert.Equal(t, []byte{9, 8, 7}, got)
}

func TestLPD8806Frame(t *testing.T) {
	px := []encode.Pixel{{R: 0xFF, G: 0x00, B: 0x80}}
	got := encode.Frame(spiVariant(chipset.LPD8806), px, encode.Options{Order: encode.OrderRGB})

	require.Len(t, got, 4)
	assert.Equal(t, []byte{0xFF, 0x80, 0xC0}, got[:3], "7-bit channels with MSB set")
	assert.Equal(t, byte(0), got[3], "latch byte")
}

func TestP9813Frame(t *testing.T) {
	px := []encode.Pixel{{R: 0xFF, G: 0x00, B: 0x00}}
	got := encode.Frame(spiVariant(chipset.P9813), px, encode.Options{Order: encode.OrderRGB})

	require.Len(t, got, 12)
	assert.Equal(t, []byte{0, 0, 0, 0}, got[:4])
	assert.Equal(t, byte(0xFC), got[4], "flag carries inverted top bits")
	assert.Equal(t, []byte{0x00, 0x00, 0xFF}, got[5:8])
	assert.Equal(t, []byte{0, 0, 0, 0}, got[8:])
}

func TestGammaCorrection(t *testing.T) {
	v := chipset.Clockless{Pin: 18, Timing: chipset.WS2812}
	px := []encode.Pixel{{R: 255, G: 0, B: 128}}

	got := encode.Frame(v, px, encode.Options{Order: encode.OrderRGB, Gamma: encode.DefaultGamma})
	assert.Equal(t, byte(255), got[0], "full scale maps to full scale")
	assert.Equal(t, byte(0), got[1], "black stays black")
	assert.Equal(t, byte(37), got[2], "midpoint pulled down by the curve")
}

func TestWhiteCapScalesHotPixels(t *testing.T) {
	v := chipset.Clockless{Pin: 18, Timing: chipset.WS2812}
	o := encode.Options{Order: encode.OrderRGB, WhiteCap: 0.5}

	got := encode.Frame(v, []encode.Pixel{{R: 255, G: 255, B: 255}}, o)
	assert.Equal(t, []byte{128, 128, 128}, got, "full white halved")

	got = encode.Frame(v, []encode.Pixel{{R: 100, G: 50, B: 0}}, o)
	assert.Equal(t, []byte{100, 50, 0}, got, "under the limit passes through")

	o.WhiteCap = 0
	got = encode.Frame(v, []encode.Pixel{{R: 255, G: 255, B: 255}}, o)
	assert.Equal(t, []byte{255, 255, 255}, got, "zero disables the cap")

	o.WhiteCap = 1
	got = encode.Frame(v, []encode.Pixel{{R: 255, G: 255, B: 255}}, o)
	assert.Equal(t, []byte{255, 255, 255}, got)
}

func TestFrameSizeMatchesFrame(t *testing.T) {
	px := make([]encode.Pixel, 3)
	variants := []chipset.Variant{
		chipset.Clockless{Pin: 18, Timing: chipset.WS2812},
		spiVariant(chipset.APA102),
		spiVariant(chipset.SK9822),
		spiVariant(chipset.WS2801),
		spiVariant(chipset.LPD8806),
		spiVariant(chipset.P9813),
	}
	for _, v := range variants {
		o := encode.Options{Order: encode.OrderGRB}
		assert.Len(t, encode.Frame(v, px, o), encode.FrameSize(v, len(px), o), v.String())
	}
}

func TestAppendFrameReusesBuffer(t *testing.T) {
	v := chipset.Clockless{Pin: 18, Timing: chipset.WS2812}
	px := []encode.Pixel{{R: 1, G: 2, B: 3}}

	buf := make([]byte, 0, 16)
	got := encode.AppendFrame(buf, v, px, encode.Options{Order: encode.OrderRGB})
	assert.Equal(t, []byte{1, 2, 3}, got)

	got = encode.AppendFrame(got[:0], v, []encode.Pixel{{R: 4, G: 5, B: 6}}, encode.Options{Order: encode.OrderRGB})
	assert.Equal(t, []byte{4, 5, 6}, got)
}
