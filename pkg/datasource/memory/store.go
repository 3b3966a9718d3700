package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
)

const storeComponentName = "datasource.memory.store"

// Store keeps minute bars per symbol in ascending timestamp order.
type Store struct {
	bars map[string][]common.Bar
}

func NewStore() *Store {
	return &Store{bars: make(map[string][]common.Bar)}
}

// Add inserts bars, replacing any existing bar of the same symbol and timestamp.
func (s *Store) Add(bars ...common.Bar) {
	touched := make(map[string]struct{})
	for _, bar := range bars {
		if bar.Period == 0 {
			bar.Period = common.MinuteBarPeriod
		}
		if bar.Source == "" {
			bar.Source = storeComponentName
		}
		bar.TimeStamp = bar.TimeStamp.UTC()
		s.bars[bar.Symbol] = append(s.bars[bar.Symbol], bar)
		touched[bar.Symbol] = struct{}{}
	}

	for symbol := range touched {
		series := s.bars[symbol]
		sort.SliceStable(series, func(i, j int) bool { return series[i].TimeStamp.Before(series[j].TimeStamp) })

		// later additions win
		deduped := series[:0]
		for _, bar := range series {
			if n := len(deduped); n > 0 && deduped[n-1].TimeStamp.Equal(bar.TimeStamp) {
				deduped[n-1] = bar
				continue
			}
			deduped = append(deduped, bar)
		}
		s.bars[symbol] = deduped
	}
}

func (s *Store) MinuteBars(symbol string, from, to time.Time) ([]common.Bar, error) {
	series := s.bars[symbol]
	lo := search(series, from)
	hi := search(series, to)
	if lo >= hi {
		return nil, nil
	}
	return append([]common.Bar(nil), series[lo:hi]...), nil
}

func (s *Store) LastBar(symbol string, t time.Time) (common.Bar, error) {
	series := s.bars[symbol]
	idx := sort.Search(len(series), func(i int) bool { return series[i].TimeStamp.After(t) })
	if idx == 0 {
		return common.Bar{}, fmt.Errorf("%s at %s: %w", symbol, t.Format(time.RFC3339), datasource.ErrNoBar)
	}
	return series[idx-1], nil
}

// search returns the index of the first bar at or after t.
func search(series []common.Bar, t time.Time) int {
	return sort.Search(len(series), func(i int) bool { return !series[i].TimeStamp.Before(t) })
}

var _ datasource.BarStore = (*Store)(nil)
