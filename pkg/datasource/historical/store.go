package historical

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility"
)

const storeComponentName = "datasource.historical.store"

// Store serves minute bars from one "<SYMBOL>.bin" file per symbol in a directory. Files are
// mapped on first use and must be sorted by timestamp.
type Store struct {
	dir string

	mu      sync.Mutex
	sources map[string]*Source[BinaryBar]
}

func NewStore(dir string) *Store {
	return &Store{
		dir:     dir,
		sources: make(map[string]*Source[BinaryBar]),
	}
}

func (s *Store) source(symbol string) (*Source[BinaryBar], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if src, ok := s.sources[symbol]; ok {
		return src, nil
	}

	src := NewSource[BinaryBar](filepath.Join(s.dir, symbol+".bin"))
	if err := src.Open(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			src = nil
		} else {
			return nil, err
		}
	}
	s.sources[symbol] = src
	return src, nil
}

func (s *Store) MinuteBars(symbol string, from, to time.Time) ([]common.Bar, error) {
	src, err := s.source(symbol)
	if err != nil || src == nil {
		return nil, err
	}

	fromUnix := from.Unix()
	if from.After(time.Unix(fromUnix, 0)) {
		fromUnix++
	}
	idx, err := src.Search(func(b *BinaryBar) bool { return b.TimeStamp >= fromUnix })
	if err != nil {
		return nil, fmt.Errorf("unable to look up %s bars from %s: %w", symbol, from, err)
	}

	var bars []common.Bar
	var entry BinaryBar
	for ; idx < src.EntryCount(); idx++ {
		if err := src.Read(idx, &entry); err != nil {
			return nil, fmt.Errorf("error reading %s entry at index %d: %w", symbol, idx, err)
		}
		if !time.Unix(entry.TimeStamp, 0).Before(to) {
			break
		}
		bars = append(bars, s.toBar(symbol, entry))
	}
	return bars, nil
}

func (s *Store) LastBar(symbol string, t time.Time) (common.Bar, error) {
	src, err := s.source(symbol)
	if err != nil {
		return common.Bar{}, err
	}
	if src == nil {
		return common.Bar{}, fmt.Errorf("%s: %w", symbol, datasource.ErrNoBar)
	}

	tUnix := t.Unix()
	idx, err := src.Search(func(b *BinaryBar) bool { return b.TimeStamp > tUnix })
	if err != nil {
		return common.Bar{}, fmt.Errorf("unable to look up %s bar at %s: %w", symbol, t, err)
	}
	if idx == 0 {
		return common.Bar{}, fmt.Errorf("%s at %s: %w", symbol, t.Format(time.RFC3339), datasource.ErrNoBar)
	}

	var entry BinaryBar
	if err := src.Read(idx-1, &entry); err != nil {
		return common.Bar{}, fmt.Errorf("error reading %s entry at index %d: %w", symbol, idx-1, err)
	}
	return s.toBar(symbol, entry), nil
}

func (s *Store) toBar(symbol string, entry BinaryBar) common.Bar {
	var bar common.Bar
	entry.ToBar(&bar)
	bar.Source = storeComponentName
	bar.Symbol = symbol
	bar.ExecutionId = utility.GetExecutionID()
	bar.TraceID = utility.CreateTraceID()
	return bar
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for symbol, src := range s.sources {
		if src != nil {
			errs = append(errs, src.Close())
		}
		delete(s.sources, symbol)
	}
	return errors.Join(errs...)
}

var _ datasource.BarStore = (*Store)(nil)
