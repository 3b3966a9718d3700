package synthetic

import (
	"math"
	"math/rand"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource/calendar"
	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

const (
	barGeneratorComponentName = "datasource.synthetic.generator"

	tradingMinutesPerYear = 252 * 390
)

// BarGenerator produces minute bars following geometric brownian motion. Every bar is built
// from a number of sub-minute steps so that high and low differ from open and close.
type BarGenerator struct {
	symbol string
	rng    *rand.Rand

	stepsPerBar    int
	avgVolume      float64
	volumeVariance float64
	priceDigits    int
	minPrice       float64

	drift     float64
	diffusion float64

	lastPrice float64
}

type Option func(*BarGenerator)

func WithStepsPerBar(steps int) Option {
	return func(g *BarGenerator) {
		if steps > 0 {
			g.stepsPerBar = steps
		}
	}
}

func WithVolume(avg, variance float64) Option {
	return func(g *BarGenerator) {
		g.avgVolume = avg
		g.volumeVariance = variance
	}
}

func WithPriceDigits(digits int) Option {
	return func(g *BarGenerator) {
		g.priceDigits = digits
	}
}

// NewBarGenerator starts at startPrice. mu and sigma are annualised drift and volatility,
// a year being 252 sessions of 390 minutes.
func NewBarGenerator(symbol string, rng *rand.Rand, startPrice, mu, sigma float64, options ...Option) *BarGenerator {
	g := &BarGenerator{
		symbol:         symbol,
		rng:            rng,
		stepsPerBar:    12,
		avgVolume:      1000,
		volumeVariance: 0.5,
		priceDigits:    2,
		lastPrice:      startPrice,
	}
	for _, option := range options {
		option(g)
	}

	g.minPrice = math.Pow(10, -float64(g.priceDigits))

	dt := 1.0 / float64(tradingMinutesPerYear*g.stepsPerBar)
	g.drift = (mu - 0.5*sigma*sigma) * dt
	g.diffusion = sigma * math.Sqrt(dt)
	return g
}

// Next returns the bar for the minute starting at t.
func (g *BarGenerator) Next(t time.Time) common.Bar {
	open := g.lastPrice
	high, low := open, open

	for i := 0; i < g.stepsPerBar; i++ {
		g.lastPrice *= math.Exp(g.drift + g.diffusion*g.rng.NormFloat64())
		if g.lastPrice < g.minPrice {
			g.lastPrice = g.minPrice
		}
		high = math.Max(high, g.lastPrice)
		low = math.Min(low, g.lastPrice)
	}

	return common.Bar{
		Source:      barGeneratorComponentName,
		Symbol:      g.symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   t.UTC().Truncate(time.Minute),
		Period:      common.MinuteBarPeriod,
		Open:        g.price(open),
		High:        g.price(high),
		Low:         g.price(low),
		Close:       g.price(g.lastPrice),
		Volume:      fixed.FromInt64(g.volume(), 0),
	}
}

// Sessions returns one bar for every regular-hours minute of the sessions, in order.
func (g *BarGenerator) Sessions(sessions ...calendar.Session) []common.Bar {
	var bars []common.Bar
	for _, session := range sessions {
		for t := session.Open.UTC(); t.Before(session.Close); t = t.Add(time.Minute) {
			bars = append(bars, g.Next(t))
		}
	}
	return bars
}

func (g *BarGenerator) price(v float64) fixed.Point {
	return fixed.FromFloat64(v).Rescale(g.priceDigits)
}

func (g *BarGenerator) volume() int64 {
	v := g.avgVolume * math.Exp(g.rng.NormFloat64()*g.volumeVariance)
	if v < 1 {
		return 1
	}
	return int64(math.Round(v))
}
