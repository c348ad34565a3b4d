package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/lumentide/ledbus/internal/chipset"
	"github.com/lumentide/ledbus/internal/encode"
)

type Driver struct {
	Kind     string `yaml:"kind"` // "spi" | "nrz" | "term" | "stub"
	Priority int    `yaml:"priority"`
	Port     string `yaml:"port,omitempty"`     // spireg name, "" = first available
	SpeedHz  int    `yaml:"speed_hz,omitempty"` // spi only
	Pixels   int    `yaml:"pixels,omitempty"`   // nrz only
	Width    int    `yaml:"width,omitempty"`    // term only
}

type Channel struct {
	Name    string `yaml:"name"`
	Count   int    `yaml:"count"`
	Chipset string `yaml:"chipset"` // e.g. WS2812, APA102, lpd8806

	// Clockless wiring.
	Pin int `yaml:"pin,omitempty"`

	// SPI wiring.
	DataPin  int `yaml:"data_pin,omitempty"`
	ClockPin int `yaml:"clock_pin,omitempty"`
	SpeedHz  int `yaml:"speed_hz,omitempty"`

	ColorOrder string  `yaml:"color_order,omitempty"`
	RGBW       string  `yaml:"rgbw,omitempty"` // "" | null | exact | boosted
	Gamma      float64 `yaml:"gamma,omitempty"`
	WhiteCap   float64 `yaml:"white_cap,omitempty"` // 0..1, 0 = uncapped
	Luminance  int     `yaml:"luminance,omitempty"` // APA102/SK9822 global level 1-31
	Affinity   string  `yaml:"affinity,omitempty"`  // pin to one driver by name
}

type Config struct {
	LogLevel string `yaml:"log_level"`
	Listen   string `yaml:"listen"`
	FPS      int    `yaml:"fps"`
	Demo     string `yaml:"demo"` // rainbow | sweep | channels | off
	MDNS     bool   `yaml:"mdns"`

	ExclusiveDriver string   `yaml:"exclusive_driver,omitempty"`
	ExpectDrivers   []string `yaml:"expect_drivers,omitempty"`

	Drivers  []Driver  `yaml:"drivers"`
	Channels []Channel `yaml:"channels"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Listen:   ":8080",
		FPS:      30,
		Demo:     "rainbow",
		MDNS:     true,
		Drivers: []Driver{
			{Kind: "spi", Priority: 50},
			{Kind: "nrz", Priority: 40, Pixels: 64},
			{Kind: "term", Priority: 10},
			{Kind: "stub", Priority: 0},
		},
		Channels: []Channel{
			{Name: "strip", Count: 64, Chipset: "WS2812", Pin: 18, Gamma: encode.DefaultGamma, WhiteCap: 0.85},
		},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Variant resolves the chipset name to its descriptor. Clockless names
// come from the timing catalog, everything else must parse as an SPI
// protocol.
func (c Channel) Variant() (chipset.Variant, error) {
	if t, ok := chipset.TimingByName(c.Chipset); ok {
		pin := c.Pin
		if pin == 0 {
			pin = c.DataPin
		}
		return chipset.Clockless{Pin: pin, Timing: t}, nil
	}
	proto, err := chipset.ParseProtocol(c.Chipset)
	if err != nil {
		return nil, fmt.Errorf("channel %q: %w", c.Name, err)
	}
	speed := physic.Frequency(c.SpeedHz) * physic.Hertz
	if speed <= 0 {
		speed = 4 * physic.MegaHertz
	}
	return chipset.SPI{
		DataPin:  c.DataPin,
		ClockPin: c.ClockPin,
		Protocol: proto,
		Speed:    speed,
	}, nil
}

// Encoding builds the wire options for the resolved variant. Color
// order defaults to the chipset's usual layout when left empty.
func (c Channel) Encoding(v chipset.Variant) (encode.Options, error) {
	o := encode.Options{Gamma: c.Gamma, WhiteCap: c.WhiteCap}

	if c.ColorOrder != "" {
		ord, err := encode.ParseOrder(c.ColorOrder)
		if err != nil {
			return o, fmt.Errorf("channel %q: %w", c.Name, err)
		}
		o.Order = ord
	} else {
		o.Order = defaultOrder(v)
	}

	mode, err := encode.ParseRGBW(c.RGBW)
	if err != nil {
		return o, fmt.Errorf("channel %q: %w", c.Name, err)
	}
	o.RGBW = mode

	if c.Luminance < 0 || c.Luminance > 31 {
		return o, fmt.Errorf("channel %q: luminance %d out of range 0-31", c.Name, c.Luminance)
	}
	o.Luminance = uint8(c.Luminance)
	return o, nil
}

func defaultOrder(v chipset.Variant) encode.ColorOrder {
	s, ok := v.(chipset.SPI)
	if !ok {
		return encode.OrderGRB
	}
	switch s.Protocol {
	case chipset.APA102, chipset.SK9822:
		return encode.OrderBGR
	case chipset.LPD8806:
		return encode.OrderGRB
	default: // WS2801, P9813
		return encode.OrderRGB
	}
}
