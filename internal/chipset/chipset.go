// Package chipset describes the LED chipsets a channel can be wired to.
//
// A chipset is either clockless (single data line, NRZ pulse timing) or
// SPI-style (data+clock lines, framed protocol). Drivers inspect the
// descriptor to decide whether they can serve a channel.
package chipset

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Protocol identifies an SPI-style LED protocol.
type Protocol uint8

const (
	APA102 Protocol = iota
	SK9822
	WS2801
	LPD8806
	P9813
)

func (p Protocol) String() string {
	switch p {
	case APA102:
		return "APA102"
	case SK9822:
		return "SK9822"
	case WS2801:
		return "WS2801"
	case LPD8806:
		return "LPD8806"
	case P9813:
		return "P9813"
	}
	return fmt.Sprintf("Protocol(%d)", uint8(p))
}

// ParseProtocol resolves a config string like "apa102" to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APA102", "DOTSTAR":
		return APA102, nil
	case "SK9822":
		return SK9822, nil
	case "WS2801":
		return WS2801, nil
	case "LPD8806":
		return LPD8806, nil
	case "P9813":
		return P9813, nil
	}
	return 0, fmt.Errorf("unknown spi protocol %q", s)
}

// Timing holds the NRZ pulse shape for a clockless chipset.
// T1 is the high time for a 0 bit, T2 the additional high time for a 1
// bit and T3 the low tail. Reset is the latch gap between frames.
type Timing struct {
	Name  string
	T1    time.Duration
	T2    time.Duration
	T3    time.Duration
	Reset time.Duration
}

// Period returns the total bit period T1+T2+T3.
func (t Timing) Period() time.Duration {
	return t.T1 + t.T2 + t.T3
}

// Equal compares pulse timing only. Name is a label and does not
// participate, so two differently named chips with identical timing
// group onto the same driver.
func (t Timing) Equal(o Timing) bool {
	return t.T1 == o.T1 && t.T2 == o.T2 && t.T3 == o.T3 && t.Reset == o.Reset
}

// Well known clockless chip timings.
var (
	WS2812  = Timing{Name: "WS2812", T1: 250 * time.Nanosecond, T2: 625 * time.Nanosecond, T3: 375 * time.Nanosecond, Reset: 280 * time.Microsecond}
	WS2811  = Timing{Name: "WS2811", T1: 320 * time.Nanosecond, T2: 320 * time.Nanosecond, T3: 640 * time.Nanosecond, Reset: 280 * time.Microsecond}
	SK6812  = Timing{Name: "SK6812", T1: 300 * time.Nanosecond, T2: 300 * time.Nanosecond, T3: 600 * time.Nanosecond, Reset: 80 * time.Microsecond}
	UCS1903 = Timing{Name: "UCS1903", T1: 500 * time.Nanosecond, T2: 1500 * time.Nanosecond, T3: 500 * time.Nanosecond, Reset: 24 * time.Microsecond}
)

var timings = map[string]Timing{
	"WS2812": WS2812, "WS2812B": WS2812,
	"WS2811": WS2811,
	"SK6812": SK6812,
	"UCS1903": UCS1903,
}

// TimingByName looks a chip name up in the catalog, case-insensitively.
func TimingByName(name string) (Timing, bool) {
	t, ok := timings[strings.ToUpper(strings.TrimSpace(name))]
	return t, ok
}

// Variant is the closed set of chipset wirings. Only Clockless and SPI
// implement it; drivers switch over the two cases exhaustively.
type Variant interface {
	fmt.Stringer
	variant()
}

// Clockless is a single-wire chipset on a data pin.
type Clockless struct {
	Pin    int
	Timing Timing
}

func (Clockless) variant() {}

func (c Clockless) String() string {
	return fmt.Sprintf("clockless(%s pin=%d)", c.Timing.Name, c.Pin)
}

// SPI is a two-wire chipset on data and clock pins.
type SPI struct {
	DataPin  int
	ClockPin int
	Protocol Protocol
	Speed    physic.Frequency
}

func (SPI) variant() {}

func (s SPI) String() string {
	return fmt.Sprintf("spi(%s data=%d clock=%d %s)", s.Protocol, s.DataPin, s.ClockPin, s.Speed)
}
