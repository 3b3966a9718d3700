package bus

import (
	"context"

	"github.com/wentam/simbroker/pkg/common"
)

type EventHandler[T any] = func(context.Context, T)

type BarEventHandler EventHandler[common.Bar]
type EquityEventHandler EventHandler[common.Equity]
type BalanceEventHandler EventHandler[common.Balance]
type OrderAcceptanceEventHandler EventHandler[common.OrderAccepted]
type OrderRejectionEventHandler EventHandler[common.OrderRejected]
type OrderFilledEventHandler EventHandler[common.OrderFilled]
type OrderCancelEventHandler EventHandler[common.OrderCancelled]
type OrderExpiredEventHandler EventHandler[common.OrderExpired]
type MarginCallEventHandler EventHandler[common.MarginCall]
type InterestChargedEventHandler EventHandler[common.InterestCharged]
type PatternDayTraderEventHandler EventHandler[common.PatternDayTrader]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
