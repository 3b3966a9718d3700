package datasource

import (
	"errors"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

var (
	ErrPriceUnavailable      = errors.New("price unavailable")
	ErrBorrowRateUnavailable = errors.New("borrow rate unavailable")
	ErrCalendarUnavailable   = errors.New("calendar unavailable")
	ErrPhaseChangeUnknown    = errors.New("phase change unknown")
	ErrSymbolUnknown         = errors.New("symbol unknown")
)

// StockDataSource is everything the simulated broker knows about the market.
//
// MinuteBars returns the one minute bars of symbol with a timestamp in [from, to), ascending.
// Missing minutes are simply absent. NextPhaseChange returns the first matching change strictly
// after t, PrevPhaseChange the last matching change at or before t.
type StockDataSource interface {
	MinuteBars(symbol string, from, to time.Time) ([]common.Bar, error)
	Price(symbol string, t time.Time) (fixed.Point, error)
	BorrowRate(symbol string, t time.Time) (fixed.Point, error)

	MarketPhase(t time.Time) (common.MarketPhase, error)
	NextPhaseChange(t time.Time, filter PhaseChangeFilter) (common.MarketPhaseChange, error)
	PrevPhaseChange(t time.Time, filter PhaseChangeFilter) (common.MarketPhaseChange, error)

	IsMarginable(symbol string, t time.Time) (bool, error)
	IsEasyToBorrow(symbol string, t time.Time) (bool, error)
	IsShortable(symbol string, t time.Time) (bool, error)
}

type PhaseChangeFilter func(change common.MarketPhaseChange) bool

func AnyPhaseChange() PhaseChangeFilter {
	return func(common.MarketPhaseChange) bool { return true }
}

func PhaseChangeTo(phase common.MarketPhase) PhaseChangeFilter {
	return func(change common.MarketPhaseChange) bool { return change.To == phase }
}

func PhaseChangeFrom(phase common.MarketPhase) PhaseChangeFilter {
	return func(change common.MarketPhaseChange) bool { return change.From == phase }
}
