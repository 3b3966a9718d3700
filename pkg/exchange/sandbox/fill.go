package sandbox

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

// FillRateEstimator returns how many shares an order could have obtained from bar during the
// tradable part of it.
type FillRateEstimator func(bar common.Bar, tradable time.Duration) int64

// UnboundedFillRate assumes any tradable time fills the whole order. It is an upper bound: the
// market is assumed to trade exclusively with us.
func UnboundedFillRate(common.Bar, time.Duration) int64 {
	return math.MaxInt64
}

// VolumeFillRate bounds the fill by the bar volume, spread evenly over the bar period.
func VolumeFillRate(bar common.Bar, tradable time.Duration) int64 {
	if bar.Period <= 0 || tradable <= 0 {
		return 0
	}
	shares := bar.Volume.MulInt64(int64(tradable)).DivInt64(int64(bar.Period))
	f, _ := shares.Float64()
	return int64(f)
}

func (s *Simulator) updateOrderFillState(o *orderState) error {
	return s.fillUntil(o, time.Time{})
}

// fillUntil walks the order's OPEN intervals and applies the shares filled since the last call.
// A non-zero until closes the last interval there, as if the order had left OPEN at until.
func (s *Simulator) fillUntil(o *orderState, until time.Time) error {
	if o.IsFilled() || o.Qty == 0 || o.doneFilling {
		return nil
	}

	startQty := o.FilledQty
	target := abs(o.Qty)

	var filledTime time.Duration
	var filledShares int64
	var lastFill time.Time
	weighted := fixed.Zero

	for i, entry := range o.StatusHistory {
		if entry.Status != common.OrderStatusOpen {
			continue
		}

		next := until
		if i+1 < len(o.StatusHistory) {
			next = o.StatusHistory[i+1].TimeStamp
			if !next.After(entry.TimeStamp) {
				continue
			}
		}

		var walkErr error
		err := s.eachBar(o.Symbol, o.CreatedAt.Truncate(time.Minute).Add(-time.Minute), func(bar common.Bar) bool {
			if !next.IsZero() && !bar.TimeStamp.Before(next) {
				return false
			}
			if !bar.End().After(o.CreatedAt) {
				return true
			}
			if o.Type == common.OrderTypeLimit && unfavourableOpen(o.Order, bar) {
				return true
			}

			tradable, err := s.tradableTime(o.Order, bar, next)
			if err != nil {
				walkErr = err
				return false
			}

			if tradable > 0 {
				filledTime += tradable
				weighted = weighted.Add(bar.Close.Mul(seconds(tradable)))
				if s.instaFill {
					filledShares = target
				} else {
					filledShares = saturatingAdd(filledShares, s.fillRate(bar, tradable))
				}
				lastFill = fillEnd(bar, s.clock, next)
			}

			return filledShares < target
		})
		if err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
	}

	if o.Status != common.OrderStatusOpen {
		o.doneFilling = true
	}

	if filledShares > target {
		filledShares = target
	}
	if o.Qty < 0 {
		filledShares = -filledShares
	}
	if filledShares == 0 || filledTime <= 0 {
		return nil
	}

	avgPrice := weighted.Div(seconds(filledTime))
	delta := filledShares - startQty

	o.FilledQty = filledShares
	o.FilledAvgPrice = avgPrice
	if o.IsFilled() {
		o.FilledAt = lastFill
	}
	if delta == 0 {
		return nil
	}
	if lastFill.After(o.UpdatedAt) {
		o.UpdatedAt = lastFill
	}

	// the new shares are booked at the cumulative average
	held := s.positionQty(o.Symbol)
	position := s.applyFill(o.Symbol, delta, avgPrice.MulInt64(delta))
	s.balance = s.balance.Sub(avgPrice.MulInt64(delta))

	s.logger.Debug("order filled",
		zap.Int64("id", o.Id),
		zap.String("symbol", o.Symbol),
		zap.Int64("delta", delta),
		zap.Int64("filled_qty", o.FilledQty),
		zap.String("avg_price", avgPrice.String()),
		zap.String("balance", s.balance.String()))

	s.post(bus.OrderFilledEvent, common.OrderFilled{
		OriginalOrder: o.Clone(),
		PositionId:    position,
		Qty:           delta,
		Price:         avgPrice,
		Source:        simulatorComponentName,
		ExecutionId:   utility.GetExecutionID(),
		TraceID:       utility.CreateTraceID(),
		TimeStamp:     s.clock,
	})

	s.recordDayTrade(o.Symbol, held, delta)
	return nil
}

// tradableTime is the part of bar the order could trade in: the market phase must be OPEN, or
// PREMARKET / POSTMARKET for extended hours orders. Time before the order was created and after
// the clock is excluded unless insta fill is enabled; time at or after next is always excluded.
func (s *Simulator) tradableTime(o common.Order, bar common.Bar, next time.Time) (time.Duration, error) {
	from, to := bar.TimeStamp, bar.End()
	if !s.instaFill {
		if o.CreatedAt.After(from) {
			from = o.CreatedAt
		}
		if s.clock.Before(to) {
			to = s.clock
		}
	}
	if !next.IsZero() && next.Before(to) {
		to = next
	}

	var total time.Duration
	for t := from; t.Before(to); {
		phase, err := s.source.MarketPhase(t)
		if errors.Is(err, datasource.ErrCalendarUnavailable) {
			break
		}
		if err != nil {
			return 0, err
		}

		segmentEnd := to
		change, err := s.source.NextPhaseChange(t, datasource.AnyPhaseChange())
		switch {
		case err == nil:
			if change.TimeStamp.Before(to) {
				segmentEnd = change.TimeStamp
			}
		case !errors.Is(err, datasource.ErrPhaseChangeUnknown):
			return 0, err
		}

		if phase == common.MarketPhaseOpen || (phase.Extended() && o.ExtendedHours) {
			total += segmentEnd.Sub(t)
		}
		t = segmentEnd
	}
	return total, nil
}

// fillEnd is the last instant of bar the order could have traded in.
func fillEnd(bar common.Bar, clock, next time.Time) time.Time {
	end := bar.End()
	if clock.Before(end) {
		end = clock
	}
	if !next.IsZero() && next.Before(end) {
		end = next
	}
	return end
}

func unfavourableOpen(o common.Order, bar common.Bar) bool {
	if o.Qty > 0 {
		return bar.Open.Gt(o.LimitPrice)
	}
	return bar.Open.Lt(o.LimitPrice)
}

func seconds(d time.Duration) fixed.Point {
	return fixed.FromInt64(d.Milliseconds(), 3)
}

func saturatingAdd(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
