package encode

import (
	"math"
	"sync"
)

// DefaultGamma matches the perceptual curve most strips are tuned for.
const DefaultGamma = 2.8

var (
	gammaMu   sync.Mutex
	gammaLUTs = map[float64]*[256]byte{}
)

// lutFor returns the cached correction table for a gamma value, or nil
// for linear output. Tables are built once and shared.
func lutFor(gamma float64) *[256]byte {
	if gamma <= 0 {
		return nil
	}
	gammaMu.Lock()
	defer gammaMu.Unlock()
	if lut, ok := gammaLUTs[gamma]; ok {
		return lut
	}
	lut := new([256]byte)
	for i := 0; i < 256; i++ {
		lut[i] = byte(math.Round(255 * math.Pow(float64(i)/255, gamma)))
	}
	gammaLUTs[gamma] = lut
	return lut
}
