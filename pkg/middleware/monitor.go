package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorBars
	MonitorEquity
	MonitorBalance
	MonitorOrdersAccepted
	MonitorOrdersRejected
	MonitorOrdersFilled
	MonitorOrdersCancelled
	MonitorOrdersExpired
	MonitorMarginCalls
	MonitorInterest
	MonitorPatternDayTrader
)

// Monitor logs the events passing through the handlers it wraps. Rejections, margin calls and
// the pattern day trader flag are logged at warn level, everything else at info.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return func(ctx context.Context, bar common.Bar) {
		if m.enabled(MonitorBars) {
			m.logger.Info("event", zap.Any("bar", bar))
		}
		handler(ctx, bar)
	}
}

func (m *Monitor) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return func(ctx context.Context, equity common.Equity) {
		if m.enabled(MonitorEquity) {
			m.logger.Info("event", zap.Time("ts", equity.TimeStamp), zap.Stringer("equity", equity.Value))
		}
		handler(ctx, equity)
	}
}

func (m *Monitor) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, balance common.Balance) {
		if m.enabled(MonitorBalance) {
			m.logger.Info("event", zap.Time("ts", balance.TimeStamp), zap.Stringer("balance", balance.Value))
		}
		handler(ctx, balance)
	}
}

func (m *Monitor) WithOrderAccepted(handler bus.OrderAcceptanceEventHandler) bus.OrderAcceptanceEventHandler {
	return func(ctx context.Context, accepted common.OrderAccepted) {
		if m.enabled(MonitorOrdersAccepted) {
			m.logger.Info("event", orderFields("order_accepted", accepted.OriginalOrder)...)
		}
		handler(ctx, accepted)
	}
}

func (m *Monitor) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		if m.enabled(MonitorOrdersRejected) {
			m.logger.Warn("event", append(orderFields("order_rejected", rejected.OriginalOrder), zap.String("reason", rejected.Reason))...)
		}
		handler(ctx, rejected)
	}
}

func (m *Monitor) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		if m.enabled(MonitorOrdersFilled) {
			m.logger.Info("event", append(orderFields("order_filled", filled.OriginalOrder),
				zap.Int64("position", filled.PositionId),
				zap.Int64("delta", filled.Qty),
				zap.Stringer("price", filled.Price))...)
		}
		handler(ctx, filled)
	}
}

func (m *Monitor) WithOrderCancelled(handler bus.OrderCancelEventHandler) bus.OrderCancelEventHandler {
	return func(ctx context.Context, cancelled common.OrderCancelled) {
		if m.enabled(MonitorOrdersCancelled) {
			m.logger.Info("event", append(orderFields("order_cancelled", cancelled.OriginalOrder), zap.Int64("cancelled_qty", cancelled.CancelledQty))...)
		}
		handler(ctx, cancelled)
	}
}

func (m *Monitor) WithOrderExpired(handler bus.OrderExpiredEventHandler) bus.OrderExpiredEventHandler {
	return func(ctx context.Context, expired common.OrderExpired) {
		if m.enabled(MonitorOrdersExpired) {
			m.logger.Info("event", append(orderFields("order_expired", expired.OriginalOrder), zap.Int64("expired_qty", expired.ExpiredQty))...)
		}
		handler(ctx, expired)
	}
}

func (m *Monitor) WithMarginCall(handler bus.MarginCallEventHandler) bus.MarginCallEventHandler {
	return func(ctx context.Context, call common.MarginCall) {
		if m.enabled(MonitorMarginCalls) {
			m.logger.Warn("event",
				zap.String("type", "margin_call"),
				zap.Time("ts", call.TimeStamp),
				zap.Stringer("equity", call.Equity),
				zap.Stringer("loan", call.Loan),
				zap.Stringer("requirement", call.Requirement))
		}
		handler(ctx, call)
	}
}

func (m *Monitor) WithInterestCharged(handler bus.InterestChargedEventHandler) bus.InterestChargedEventHandler {
	return func(ctx context.Context, charged common.InterestCharged) {
		if m.enabled(MonitorInterest) {
			m.logger.Info("event",
				zap.String("type", "interest_charged"),
				zap.Time("ts", charged.TimeStamp),
				zap.Stringer("interest", charged.Interest),
				zap.Stringer("borrow_fee", charged.BorrowFee))
		}
		handler(ctx, charged)
	}
}

func (m *Monitor) WithPatternDayTrader(handler bus.PatternDayTraderEventHandler) bus.PatternDayTraderEventHandler {
	return func(ctx context.Context, flagged common.PatternDayTrader) {
		if m.enabled(MonitorPatternDayTrader) {
			m.logger.Warn("event",
				zap.String("type", "pattern_day_trader"),
				zap.Time("ts", flagged.TimeStamp),
				zap.Int("day_trades", flagged.DayTrades))
		}
		handler(ctx, flagged)
	}
}

func orderFields(kind string, o common.Order) []zap.Field {
	return []zap.Field{
		zap.String("type", kind),
		zap.Int64("id", o.Id),
		zap.String("symbol", o.Symbol),
		zap.Int64("qty", o.Qty),
		zap.Int64("filled_qty", o.FilledQty),
		zap.Stringer("status", o.Status),
	}
}
