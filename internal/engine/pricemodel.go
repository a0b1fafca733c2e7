package engine

import (
	"math"
	"math/rand"
)

// minPrice is the floor for simulated prices: one cent. Prices never
// reach zero or go negative.
const minPrice = 1

// Noise draws one value from a zero-mean, unit-scale distribution.
// The source is injected so tests can supply deterministic sequences.
type Noise func(rng *rand.Rand) float64

// UniformNoise draws from the uniform distribution on [-1, 1].
func UniformNoise(rng *rand.Rand) float64 {
	return 2*rng.Float64() - 1
}

// GaussianNoise draws from the standard normal distribution.
func GaussianNoise(rng *rand.Rand) float64 {
	return rng.NormFloat64()
}

// PriceTick is the output of one price-model step for one symbol.
type PriceTick struct {
	Price         int64 // cents
	Change        int64 // cents, Price - previous
	ChangePercent float64
	Volume        int64
}

// PriceModel advances prices via a random walk:
//
//	next = prev × (1 + volatility × z)
//
// where z is one draw from the injected noise source. The model holds
// no state; given the same rng sequence its output is exactly
// reproducible.
type PriceModel struct {
	noise Noise
}

// NewPriceModel creates a PriceModel with the given noise source.
// A nil noise defaults to UniformNoise.
func NewPriceModel(noise Noise) *PriceModel {
	if noise == nil {
		noise = UniformNoise
	}
	return &PriceModel{noise: noise}
}

// Next computes the next price from the previous one. Exactly two rng
// draws are consumed per call, in a fixed order: one for the price
// step, one for the volume. Volume scales baseVolume by an independent
// non-negative factor in [0.5, 1.5).
func (m *PriceModel) Next(prevPrice int64, volatility float64, baseVolume int64, rng *rand.Rand) PriceTick {
	z := m.noise(rng)
	next := int64(math.Round(float64(prevPrice) * (1 + volatility*z)))
	if next < minPrice {
		next = minPrice
	}

	volume := int64(float64(baseVolume) * (0.5 + rng.Float64()))
	if volume < 0 {
		volume = 0
	}

	change := next - prevPrice
	return PriceTick{
		Price:         next,
		Change:        change,
		ChangePercent: float64(change) / float64(prevPrice) * 100,
		Volume:        volume,
	}
}
