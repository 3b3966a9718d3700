package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
)

const barChunkSize = 1000

// eachBar calls fn with one bar per minute starting at the minute of start and ending with the
// last minute that begins before the clock. Minutes without a real bar get a zero volume bar at
// the previous close. Until a first bar is known, the point price is used and minutes without one
// are skipped. A skipped minute after the first bar is a data gap. fn returns false to stop.
func (s *Simulator) eachBar(symbol string, start time.Time, fn func(common.Bar) bool) error {
	clock := s.clock
	start = start.Truncate(time.Minute)

	var prev common.Bar
	havePrev := false

	for chunkStart := start; chunkStart.Before(clock); chunkStart = chunkStart.Add(barChunkSize * time.Minute) {
		chunkEnd := chunkStart.Add(barChunkSize * time.Minute)
		if chunkEnd.After(clock) {
			chunkEnd = roundUpToMinute(clock)
		}

		bars, err := s.source.MinuteBars(symbol, chunkStart, chunkEnd)
		if err != nil {
			return fmt.Errorf("unable to load %s bars [%s, %s): %w", symbol, chunkStart.Format(time.RFC3339), chunkEnd.Format(time.RFC3339), err)
		}

		idx := 0
		for bt := chunkStart; bt.Before(chunkEnd) && bt.Before(clock); bt = bt.Add(time.Minute) {
			for idx < len(bars) && !bars[idx].End().After(bt) {
				idx++
			}

			var bar common.Bar
			switch {
			case idx < len(bars) && bars[idx].Covers(bt):
				// a bar without a positive close cannot be traded or carried forward
				if !bars[idx].Close.IsPos() {
					continue
				}
				bar = bars[idx]
				bar.TimeStamp = bt
				bar.Period = common.MinuteBarPeriod
			case havePrev:
				bar = syntheticBar(symbol, bt, prev)
			default:
				price, err := s.source.Price(symbol, bt)
				if errors.Is(err, datasource.ErrPriceUnavailable) {
					continue
				}
				if err != nil {
					return fmt.Errorf("unable to get %s price at %s: %w", symbol, bt.Format(time.RFC3339), err)
				}
				if !price.IsPos() {
					continue
				}
				bar = common.Bar{Symbol: symbol, TimeStamp: bt, Period: common.MinuteBarPeriod, Open: price, High: price, Low: price, Close: price}
			}

			if havePrev && !prev.TimeStamp.Add(time.Minute).Equal(bar.TimeStamp) {
				return fmt.Errorf("%s %s -> %s: %w", symbol, prev.TimeStamp.Format(time.RFC3339), bar.TimeStamp.Format(time.RFC3339), ErrDataGap)
			}

			if !fn(bar) {
				return nil
			}

			prev = bar
			havePrev = true
		}
	}
	return nil
}

func syntheticBar(symbol string, t time.Time, prev common.Bar) common.Bar {
	return common.Bar{
		Source:    simulatorComponentName,
		Symbol:    symbol,
		TimeStamp: t,
		Period:    common.MinuteBarPeriod,
		Open:      prev.Close,
		High:      prev.Close,
		Low:       prev.Close,
		Close:     prev.Close,
	}
}

func roundUpToMinute(t time.Time) time.Time {
	rounded := t.Truncate(time.Minute)
	if rounded.Before(t) {
		rounded = rounded.Add(time.Minute)
	}
	return rounded
}
