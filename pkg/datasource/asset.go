package datasource

import (
	"fmt"
	"time"

	"github.com/wentam/simbroker/pkg/utility/fixed"
)

type Asset struct {
	Symbol       string
	Marginable   bool
	EasyToBorrow bool
	Shortable    bool
	BorrowRate   fixed.Point
}

// AssetTable holds the static per symbol flags. The time argument of the lookups is accepted
// for interface compatibility; flags do not change over a run.
type AssetTable map[string]Asset

func NewAssetTable(assets ...Asset) AssetTable {
	t := make(AssetTable, len(assets))
	for _, a := range assets {
		t[a.Symbol] = a
	}
	return t
}

func (t AssetTable) lookup(symbol string) (Asset, error) {
	a, ok := t[symbol]
	if !ok {
		return Asset{}, fmt.Errorf("%s: %w", symbol, ErrSymbolUnknown)
	}
	return a, nil
}

func (t AssetTable) IsMarginable(symbol string, _ time.Time) (bool, error) {
	a, err := t.lookup(symbol)
	return a.Marginable, err
}

func (t AssetTable) IsEasyToBorrow(symbol string, _ time.Time) (bool, error) {
	a, err := t.lookup(symbol)
	return a.EasyToBorrow, err
}

func (t AssetTable) IsShortable(symbol string, _ time.Time) (bool, error) {
	a, err := t.lookup(symbol)
	return a.Shortable, err
}

func (t AssetTable) BorrowRate(symbol string, _ time.Time) (fixed.Point, error) {
	a, err := t.lookup(symbol)
	if err != nil {
		return fixed.Zero, fmt.Errorf("%w: %w", ErrBorrowRateUnavailable, err)
	}
	return a.BorrowRate, nil
}
