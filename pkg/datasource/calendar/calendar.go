package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
)

const (
	DefaultPreMarket  = 5*time.Hour + 30*time.Minute
	DefaultPostMarket = 4 * time.Hour
)

// Session is one regular trading session, [Open, Close).
type Session struct {
	Open  time.Time
	Close time.Time
}

// Calendar expands sessions into market phase changes. Each session produces
// CLOSED->PREMARKET, PREMARKET->OPEN, OPEN->POSTMARKET and POSTMARKET->CLOSED.
// The calendar answers for whole UTC days, from the day of the first session to the
// day of the last one; anything outside is ErrCalendarUnavailable.
type Calendar struct {
	preMarket  time.Duration
	postMarket time.Duration

	changes []common.MarketPhaseChange
	from    time.Time
	to      time.Time
}

type Option func(*Calendar)

func WithPreMarket(d time.Duration) Option {
	return func(c *Calendar) {
		c.preMarket = d
	}
}

func WithPostMarket(d time.Duration) Option {
	return func(c *Calendar) {
		c.postMarket = d
	}
}

func New(sessions []Session, options ...Option) (*Calendar, error) {
	c := &Calendar{
		preMarket:  DefaultPreMarket,
		postMarket: DefaultPostMarket,
	}
	for _, option := range options {
		option(c)
	}

	sorted := append([]Session(nil), sessions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Open.Before(sorted[j].Open) })

	for i, s := range sorted {
		if !s.Open.Before(s.Close) {
			return nil, fmt.Errorf("session %d opens at %s after close %s", i, s.Open, s.Close)
		}
		if i > 0 && s.Open.Add(-c.preMarket).Before(sorted[i-1].Close.Add(c.postMarket)) {
			return nil, fmt.Errorf("session %d overlaps the previous one", i)
		}

		open := s.Open.UTC()
		closing := s.Close.UTC()
		c.changes = append(c.changes,
			common.MarketPhaseChange{From: common.MarketPhaseClosed, To: common.MarketPhasePreMarket, TimeStamp: open.Add(-c.preMarket)},
			common.MarketPhaseChange{From: common.MarketPhasePreMarket, To: common.MarketPhaseOpen, TimeStamp: open},
			common.MarketPhaseChange{From: common.MarketPhaseOpen, To: common.MarketPhasePostMarket, TimeStamp: closing},
			common.MarketPhaseChange{From: common.MarketPhasePostMarket, To: common.MarketPhaseClosed, TimeStamp: closing.Add(c.postMarket)},
		)
	}

	if len(sorted) > 0 {
		c.from = sorted[0].Open.UTC().Truncate(24 * time.Hour)
		c.to = sorted[len(sorted)-1].Open.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		if last := c.changes[len(c.changes)-1].TimeStamp; last.After(c.to) {
			c.to = last
		}
		if first := c.changes[0].TimeStamp; first.Before(c.from) {
			c.from = first
		}
	}

	return c, nil
}

func (c *Calendar) covers(t time.Time) bool {
	return len(c.changes) > 0 && !t.Before(c.from) && t.Before(c.to)
}

func (c *Calendar) MarketPhase(t time.Time) (common.MarketPhase, error) {
	if !c.covers(t) {
		return common.MarketPhaseClosed, fmt.Errorf("market phase at %s: %w", t.Format(time.RFC3339), datasource.ErrCalendarUnavailable)
	}

	// first change strictly after t
	idx := sort.Search(len(c.changes), func(i int) bool { return c.changes[i].TimeStamp.After(t) })
	if idx == 0 {
		return common.MarketPhaseClosed, nil
	}
	return c.changes[idx-1].To, nil
}

func (c *Calendar) NextPhaseChange(t time.Time, filter datasource.PhaseChangeFilter) (common.MarketPhaseChange, error) {
	idx := sort.Search(len(c.changes), func(i int) bool { return c.changes[i].TimeStamp.After(t) })
	for ; idx < len(c.changes); idx++ {
		if filter(c.changes[idx]) {
			return c.changes[idx], nil
		}
	}
	return common.MarketPhaseChange{}, fmt.Errorf("after %s: %w", t.Format(time.RFC3339), datasource.ErrPhaseChangeUnknown)
}

func (c *Calendar) PrevPhaseChange(t time.Time, filter datasource.PhaseChangeFilter) (common.MarketPhaseChange, error) {
	idx := sort.Search(len(c.changes), func(i int) bool { return c.changes[i].TimeStamp.After(t) })
	for idx--; idx >= 0; idx-- {
		if filter(c.changes[idx]) {
			return c.changes[idx], nil
		}
	}
	return common.MarketPhaseChange{}, fmt.Errorf("at or before %s: %w", t.Format(time.RFC3339), datasource.ErrPhaseChangeUnknown)
}

// Sessions builds regular sessions for every weekday in [from, to) using the open and close
// offsets from midnight UTC. Useful for synthetic data and tests.
func Sessions(from, to time.Time, openOffset, closeOffset time.Duration) []Session {
	var sessions []Session
	for day := from.UTC().Truncate(24 * time.Hour); day.Before(to); day = day.Add(24 * time.Hour) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		sessions = append(sessions, Session{Open: day.Add(openOffset), Close: day.Add(closeOffset)})
	}
	return sessions
}

var _ datasource.Calendar = (*Calendar)(nil)
