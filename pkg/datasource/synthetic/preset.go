package synthetic

import (
	"math/rand"
)

// NewLargeCapGenerator models a liquid large-cap stock or index ETF.
func NewLargeCapGenerator(symbol string, rng *rand.Rand, startPrice, mu, sigma float64) *BarGenerator {
	const (
		avgVolumeShares   = 25_000
		volumeVariability = 0.6
		stepsPerMinute    = 20
	)

	return NewBarGenerator(symbol, rng, startPrice, mu, sigma,
		WithStepsPerBar(stepsPerMinute),
		WithVolume(avgVolumeShares, volumeVariability),
		WithPriceDigits(2))
}

// NewPennyStockGenerator models a thinly traded, volatile low-priced stock.
func NewPennyStockGenerator(symbol string, rng *rand.Rand, startPrice, mu, sigma float64) *BarGenerator {
	const (
		avgVolumeShares   = 300
		volumeVariability = 1.2
		stepsPerMinute    = 6
	)

	return NewBarGenerator(symbol, rng, startPrice, mu, sigma,
		WithStepsPerBar(stepsPerMinute),
		WithVolume(avgVolumeShares, volumeVariability),
		WithPriceDigits(4))
}
