package datasource

import (
	"errors"
	"fmt"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

const DefaultPriceLookback = 30 * 24 * time.Hour

var ErrNoBar = errors.New("no bar")

// BarStore is a minute bar repository. LastBar returns the latest bar with a timestamp at or
// before t, or ErrNoBar.
type BarStore interface {
	MinuteBars(symbol string, from, to time.Time) ([]common.Bar, error)
	LastBar(symbol string, t time.Time) (common.Bar, error)
}

type Calendar interface {
	MarketPhase(t time.Time) (common.MarketPhase, error)
	NextPhaseChange(t time.Time, filter PhaseChangeFilter) (common.MarketPhaseChange, error)
	PrevPhaseChange(t time.Time, filter PhaseChangeFilter) (common.MarketPhaseChange, error)
}

// Composite assembles a StockDataSource from a bar store, a calendar and an asset table.
type Composite struct {
	BarStore
	Calendar
	AssetTable

	priceLookback time.Duration
}

type CompositeOption func(*Composite)

// WithPriceLookback limits how old the last bar may be for Price to use its close.
func WithPriceLookback(d time.Duration) CompositeOption {
	return func(c *Composite) {
		c.priceLookback = d
	}
}

func NewComposite(bars BarStore, calendar Calendar, assets AssetTable, options ...CompositeOption) *Composite {
	c := &Composite{
		BarStore:      bars,
		Calendar:      calendar,
		AssetTable:    assets,
		priceLookback: DefaultPriceLookback,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Price is the close of the latest bar at or before t.
func (c *Composite) Price(symbol string, t time.Time) (fixed.Point, error) {
	bar, err := c.LastBar(symbol, t)
	if errors.Is(err, ErrNoBar) {
		return fixed.Zero, fmt.Errorf("%s at %s: %w", symbol, t.Format(time.RFC3339), ErrPriceUnavailable)
	}
	if err != nil {
		return fixed.Zero, fmt.Errorf("unable to look up last bar of %s: %w", symbol, err)
	}
	if c.priceLookback > 0 && t.Sub(bar.TimeStamp) > c.priceLookback {
		return fixed.Zero, fmt.Errorf("%s at %s, last bar %s: %w", symbol, t.Format(time.RFC3339), bar.TimeStamp.Format(time.RFC3339), ErrPriceUnavailable)
	}
	return bar.Close, nil
}

var _ StockDataSource = (*Composite)(nil)
