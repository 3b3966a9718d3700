package middleware

import (
	"context"

	"github.com/wentam/simbroker/pkg/common"
)

//goland:noinspection ALL
var (
	NoopBarHdl          = func(context.Context, common.Bar) {}
	NoopEquityHdl       = func(context.Context, common.Equity) {}
	NoopBalanceHdl      = func(context.Context, common.Balance) {}
	NoopOrderAccHdl     = func(context.Context, common.OrderAccepted) {}
	NoopOrderRjctHdl    = func(context.Context, common.OrderRejected) {}
	NoopOrderFillHdl    = func(context.Context, common.OrderFilled) {}
	NoopOrderCnclHdl    = func(context.Context, common.OrderCancelled) {}
	NoopOrderExpHdl     = func(context.Context, common.OrderExpired) {}
	NoopMarginCallHdl   = func(context.Context, common.MarginCall) {}
	NoopInterestHdl     = func(context.Context, common.InterestCharged) {}
	NoopPatternDayTrHdl = func(context.Context, common.PatternDayTrader) {}
)
