package sandbox

import (
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility"
)

const (
	dayTradeLimit  = 3
	dayTradeWindow = 5 // trading days
)

// tradingDay returns the start of the trading day containing t: the last change to PREMARKET, or
// to OPEN when the calendar has no premarket. Without calendar data the UTC day is used.
func (s *Simulator) tradingDay(t time.Time) time.Time {
	for _, phase := range []common.MarketPhase{common.MarketPhasePreMarket, common.MarketPhaseOpen} {
		if change, err := s.source.PrevPhaseChange(t, datasource.PhaseChangeTo(phase)); err == nil {
			return change.TimeStamp
		}
	}
	return t.Truncate(24 * time.Hour)
}

// windowStart returns the start of the oldest trading day of the day trade window ending at t.
func (s *Simulator) windowStart(t time.Time) time.Time {
	start := s.tradingDay(t)
	for i := 1; i < dayTradeWindow; i++ {
		start = s.tradingDay(start.Add(-time.Nanosecond))
	}
	return start
}

// recordDayTrade registers the fill of delta shares against a position of held shares. A fill
// reducing a position that was opened or increased during the same trading day is a day trade.
func (s *Simulator) recordDayTrade(symbol string, held, delta int64) {
	day := s.tradingDay(s.clock)

	if held == 0 || (held > 0) == (delta > 0) {
		s.positionDays[symbol] = day
		return
	}

	opened, ok := s.positionDays[symbol]
	if !ok || !opened.Equal(day) {
		return
	}

	s.dayTrades = append(s.dayTrades, day)
	s.logger.Debug("day trade", zap.String("symbol", symbol), zap.Time("day", day), zap.Int("remaining", s.RemainingDayTrades()))

	if s.marginEnabled && !s.patternDayTrader && s.dayTradeCount() > dayTradeLimit {
		s.patternDayTrader = true
		s.logger.Warn("flagged as pattern day trader", zap.Int("day_trades", s.dayTradeCount()))
		s.post(bus.PatternDayTraderEvent, common.PatternDayTrader{
			DayTrades:   s.dayTradeCount(),
			Source:      simulatorComponentName,
			ExecutionId: utility.GetExecutionID(),
			TraceID:     utility.CreateTraceID(),
			TimeStamp:   s.clock,
		})
		if s.pdtCallHandler != nil {
			s.pdtCallHandler()
		}
	}
}

func (s *Simulator) dayTradeCount() int {
	start := s.windowStart(s.clock)
	count := 0
	for _, day := range s.dayTrades {
		if !day.Before(start) {
			count++
		}
	}
	return count
}

// RemainingDayTrades is how many more day trades fit in the rolling five trading day window
// before the account is flagged. It goes negative past the limit.
func (s *Simulator) RemainingDayTrades() int {
	return dayTradeLimit - s.dayTradeCount()
}

// PDT reports whether the account has been flagged as a pattern day trader. The flag is never
// cleared.
func (s *Simulator) PDT() bool {
	return s.patternDayTrader
}
