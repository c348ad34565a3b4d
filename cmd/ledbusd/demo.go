package main

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumentide/ledbus/internal/bus"
	"github.com/lumentide/ledbus/internal/encode"
)

// renderFunc returns the per-frame pixel producer for the chosen demo.
// Even with the demo off every channel publishes each frame, so strips
// keep refreshing and the bus state stays live. The sweep and channels
// effects double as wiring checks during bring-up.
func renderFunc(demo string, channels []*bus.Channel) func(time.Duration) {
	switch demo {
	case "", "off":
		return func(time.Duration) { publishAll(channels) }

	case "rainbow":
		return func(elapsed time.Duration) {
			phase := elapsed.Seconds() * 0.1
			for _, ch := range channels {
				px := ch.Pixels()
				n := len(px)
				for i := range px {
					h := math.Mod(float64(i)/float64(max(n, 1))+phase, 1.0)
					r, g, b := hsvToRGB(h, 1.0, 0.8)
					px[i] = encode.Pixel{
						R: uint8(r * 255),
						G: uint8(g * 255),
						B: uint8(b * 255),
					}
				}
			}
			publishAll(channels)
		}

	case "sweep":
		// One white pixel walks each strip, wrapping at the end.
		step := 0
		return func(time.Duration) {
			for _, ch := range channels {
				px := ch.Pixels()
				for i := range px {
					px[i] = encode.Pixel{}
				}
				if len(px) > 0 {
					px[step%len(px)] = encode.Pixel{R: 255, G: 255, B: 255}
				}
			}
			step++
			publishAll(channels)
		}

	case "channels":
		// Solid red, green, blue, one second each.
		return func(elapsed time.Duration) {
			var p encode.Pixel
			switch int(elapsed.Seconds()) % 3 {
			case 0:
				p = encode.Pixel{R: 255}
			case 1:
				p = encode.Pixel{G: 255}
			default:
				p = encode.Pixel{B: 255}
			}
			for _, ch := range channels {
				px := ch.Pixels()
				for i := range px {
					px[i] = p
				}
			}
			publishAll(channels)
		}

	default:
		log.Warn().Str("demo", demo).Msg("unknown demo; rendering black")
		return func(time.Duration) { publishAll(channels) }
	}
}

func publishAll(channels []*bus.Channel) {
	for _, ch := range channels {
		ch.Publish()
	}
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	i := int(h * 6.0)
	f := h*6.0 - float64(i)
	p := v * (1.0 - s)
	q := v * (1.0 - f*s)
	t := v * (1.0 - (1.0-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
