// Package encode turns pixel colors into the wire bytes a chipset
// expects. Clockless chips take the bare channel stream (pulse shaping
// happens in the driver); SPI chips get their full frame with start and
// latch trailers so a driver can push the payload as-is.
package encode

import (
	"fmt"
	"math"
	"strings"

	"github.com/lumentide/ledbus/internal/chipset"
)

// Pixel is one LED color, 8 bits per channel.
type Pixel struct {
	R, G, B uint8
}

// ColorOrder maps R, G and B onto wire positions. Packed octal: each
// 3-bit digit is the source channel (0=R 1=G 2=B) for that output slot,
// so GRB is 0o102.
type ColorOrder uint16

const (
	OrderRGB ColorOrder = 0o012
	OrderRBG ColorOrder = 0o021
	OrderGRB ColorOrder = 0o102
	OrderGBR ColorOrder = 0o120
	OrderBRG ColorOrder = 0o201
	OrderBGR ColorOrder = 0o210
)

// Apply reorders a pixel into its three wire bytes.
func (o ColorOrder) Apply(p Pixel) [3]byte {
	c := [3]uint8{p.R, p.G, p.B}
	return [3]byte{c[(o>>6)&3], c[(o>>3)&3], c[o&3]}
}

func (o ColorOrder) String() string {
	letter := func(d ColorOrder) byte {
		switch d & 3 {
		case 0:
			return 'R'
		case 1:
			return 'G'
		default:
			return 'B'
		}
	}
	return string([]byte{letter(o >> 6), letter(o >> 3), letter(o)})
}

// ParseOrder resolves strings like "GRB" to a ColorOrder.
func ParseOrder(s string) (ColorOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RGB":
		return OrderRGB, nil
	case "RBG":
		return OrderRBG, nil
	case "GRB":
		return OrderGRB, nil
	case "GBR":
		return OrderGBR, nil
	case "BRG":
		return OrderBRG, nil
	case "BGR":
		return OrderBGR, nil
	}
	return 0, fmt.Errorf("unknown color order %q", s)
}

// RGBWMode selects how a white channel is derived for 4-channel chips.
type RGBWMode uint8

const (
	// RGBWNone emits plain 3-channel pixels.
	RGBWNone RGBWMode = iota
	// RGBWNullWhite emits a white byte that is always zero.
	RGBWNullWhite
	// RGBWExact moves the common component into white: W=min(R,G,B),
	// subtracted from each channel. Preserves the exact color.
	RGBWExact
	// RGBWBoosted emits W=min(R,G,B) without subtracting, trading
	// accuracy for brightness.
	RGBWBoosted
)

// Active reports whether a white byte is emitted per pixel.
func (m RGBWMode) Active() bool { return m != RGBWNone }

func (m RGBWMode) String() string {
	switch m {
	case RGBWNone:
		return "none"
	case RGBWNullWhite:
		return "null"
	case RGBWExact:
		return "exact"
	case RGBWBoosted:
		return "boosted"
	}
	return fmt.Sprintf("RGBWMode(%d)", uint8(m))
}

// ParseRGBW resolves a config string to an RGBWMode. Empty means none.
func ParseRGBW(s string) (RGBWMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RGBWNone, nil
	case "null":
		return RGBWNullWhite, nil
	case "exact":
		return RGBWExact, nil
	case "boosted":
		return RGBWBoosted, nil
	}
	return 0, fmt.Errorf("unknown rgbw mode %q", s)
}

// Split derives the white channel from a pixel per the mode.
func (m RGBWMode) Split(p Pixel) (Pixel, uint8) {
	switch m {
	case RGBWNullWhite:
		return p, 0
	case RGBWExact:
		w := min3(p.R, p.G, p.B)
		return Pixel{R: p.R - w, G: p.G - w, B: p.B - w}, w
	case RGBWBoosted:
		return p, min3(p.R, p.G, p.B)
	}
	return p, 0
}

func min3(a, b, c uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Options carries the per-channel encoding knobs.
type Options struct {
	Order ColorOrder
	RGBW  RGBWMode
	// Gamma applies a power-curve LUT to each channel before
	// reordering. Zero or negative means linear.
	Gamma float64
	// Luminance is the 5-bit global brightness for APA102/SK9822
	// frames, 1..31. Zero means full brightness.
	Luminance uint8
	// WhiteCap scales down any pixel whose summed channels exceed
	// cap*3*255, keeping near-white frames inside the power budget.
	// Zero or anything >= 1 disables the cap.
	WhiteCap float64
}

func (o Options) order() ColorOrder {
	if o.Order == 0 {
		return OrderRGB
	}
	return o.Order
}

func (o Options) luminance() uint8 {
	if o.Luminance == 0 || o.Luminance > 31 {
		return 31
	}
	return o.Luminance
}

// pixelBytes is the per-pixel payload width for a clockless stream.
func (o Options) pixelBytes() int {
	if o.RGBW.Active() {
		return 4
	}
	return 3
}

// FrameSize returns the encoded byte count for count pixels on the
// given chipset, trailers included.
func FrameSize(v chipset.Variant, count int, o Options) int {
	switch s := v.(type) {
	case chipset.Clockless:
		return count * o.pixelBytes()
	case chipset.SPI:
		switch s.Protocol {
		case chipset.APA102, chipset.SK9822:
			return 4 + count*4 + apaTrailerLen(count)
		case chipset.WS2801:
			return count * 3
		case chipset.LPD8806:
			return count*3 + lpdTrailerLen(count)
		case chipset.P9813:
			return 4 + count*4 + 4
		}
	}
	return 0
}

// Frame encodes pixels into a freshly allocated buffer.
func Frame(v chipset.Variant, px []Pixel, o Options) []byte {
	return AppendFrame(make([]byte, 0, FrameSize(v, len(px), o)), v, px, o)
}

// AppendFrame encodes pixels onto dst and returns the extended slice.
// Callers reuse a channel's transmission buffer by passing dst[:0].
func AppendFrame(dst []byte, v chipset.Variant, px []Pixel, o Options) []byte {
	lut := lutFor(o.Gamma)
	order := o.order()

	switch s := v.(type) {
	case chipset.Clockless:
		for _, p := range px {
			p = o.prep(p, lut)
			p, w := o.RGBW.Split(p)
			b := order.Apply(p)
			dst = append(dst, b[0], b[1], b[2])
			if o.RGBW.Active() {
				dst = append(dst, w)
			}
		}
		return dst

	case chipset.SPI:
		switch s.Protocol {
		case chipset.APA102, chipset.SK9822:
			return appendAPA102(dst, px, o, lut, order)
		case chipset.WS2801:
			for _, p := range px {
				b := order.Apply(o.prep(p, lut))
				dst = append(dst, b[0], b[1], b[2])
			}
			return dst
		case chipset.LPD8806:
			return appendLPD8806(dst, px, o, lut, order)
		case chipset.P9813:
			return appendP9813(dst, px, o, lut, order)
		}
	}
	return dst
}

// appendAPA102 frames APA102/SK9822 data: a 4-byte zero start frame,
// then per pixel a luminance byte 0b111LLLLL followed by the three
// ordered channels, then enough trailer clocks to latch the strip.
func appendAPA102(dst []byte, px []Pixel, o Options, lut *[256]byte, order ColorOrder) []byte {
	dst = append(dst, 0, 0, 0, 0)
	lum := 0xE0 | o.luminance()
	for _, p := range px {
		b := order.Apply(o.prep(p, lut))
		dst = append(dst, lum, b[0], b[1], b[2])
	}
	for i := 0; i < apaTrailerLen(len(px)); i++ {
		dst = append(dst, 0)
	}
	return dst
}

// The strip needs one extra clock edge per two pixels to shift the
// frame through; a zero byte gives 16 edges.
func apaTrailerLen(count int) int {
	n := (count + 15) / 16
	if n < 4 {
		n = 4
	}
	return n
}

// appendLPD8806 emits 7-bit channels with the MSB set, then a zeroed
// latch run of one byte per 32 pixels.
func appendLPD8806(dst []byte, px []Pixel, o Options, lut *[256]byte, order ColorOrder) []byte {
	for _, p := range px {
		b := order.Apply(o.prep(p, lut))
		dst = append(dst, 0x80|b[0]>>1, 0x80|b[1]>>1, 0x80|b[2]>>1)
	}
	for i := 0; i < lpdTrailerLen(len(px)); i++ {
		dst = append(dst, 0)
	}
	return dst
}

func lpdTrailerLen(count int) int {
	return count/32 + 1
}

// appendP9813 frames each pixel as a flag byte carrying the inverted
// top two bits of each channel, then the three ordered channels,
// bracketed by 4-byte zero start and end frames.
func appendP9813(dst []byte, px []Pixel, o Options, lut *[256]byte, order ColorOrder) []byte {
	dst = append(dst, 0, 0, 0, 0)
	for _, p := range px {
		b := order.Apply(o.prep(p, lut))
		flag := 0xC0 | (^b[2]&0xC0)>>2 | (^b[1]&0xC0)>>4 | (^b[0]&0xC0)>>6
		dst = append(dst, flag, b[2], b[1], b[0])
	}
	return append(dst, 0, 0, 0, 0)
}

// prep runs the power cap and gamma curve, in that order, before the
// pixel is reordered and framed.
func (o Options) prep(p Pixel, lut *[256]byte) Pixel {
	p = capWhite(p, o.WhiteCap)
	if lut == nil {
		return p
	}
	return Pixel{R: lut[p.R], G: lut[p.G], B: lut[p.B]}
}

func capWhite(p Pixel, frac float64) Pixel {
	if frac <= 0 || frac >= 1 {
		return p
	}
	limit := frac * 3 * 255
	sum := float64(p.R) + float64(p.G) + float64(p.B)
	if sum <= limit {
		return p
	}
	scale := limit / sum
	return Pixel{
		R: uint8(math.Round(float64(p.R) * scale)),
		G: uint8(math.Round(float64(p.G) * scale)),
		B: uint8(math.Round(float64(p.B) * scale)),
	}
}
