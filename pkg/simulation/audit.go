package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

var ErrNoSnapshots = errors.New("no account snapshots recorded")

type accountSnapshot struct {
	balance fixed.Point
	equity  fixed.Point
	t       time.Time
}

// Trade is a round trip reconstructed from fills: shares opened in one direction and later
// closed by an opposite fill. Qty is signed like the opening fill.
type Trade struct {
	Symbol     string
	Qty        int64
	EntryPrice fixed.Point
	ExitPrice  fixed.Point
	OpenedAt   time.Time
	ClosedAt   time.Time
	Profit     fixed.Point
}

type holding struct {
	qty      int64
	avgPrice fixed.Point
	openedAt time.Time
}

// Audit records account snapshots and fills coming off the bus and turns them into a Report.
// It is fed from the router goroutine and must not be read before the router is drained.
type Audit struct {
	minSnapshotInterval time.Duration

	balance          fixed.Point
	accountSnapshots []accountSnapshot

	holdings    map[string]*holding
	trades      []Trade
	fills       int
	interest    fixed.Point
	borrowFees  fixed.Point
	marginCalls int
}

func NewAudit(minSnapshotInterval time.Duration, startingBalance fixed.Point) *Audit {
	return &Audit{
		minSnapshotInterval: minSnapshotInterval,
		balance:             startingBalance,
		holdings:            make(map[string]*holding),
	}
}

func (a *Audit) AddAccountSnapshot(balance, equity fixed.Point, t time.Time) {
	if n := len(a.accountSnapshots); n == 0 || t.Sub(a.accountSnapshots[n-1].t) >= a.minSnapshotInterval {
		a.accountSnapshots = append(a.accountSnapshots, accountSnapshot{
			balance: balance,
			equity:  equity,
			t:       t,
		})
	}
}

// AddFill applies a fill delta of qty shares at price. Fills reducing a holding close trades at
// the holding's average entry price.
func (a *Audit) AddFill(symbol string, qty int64, price fixed.Point, t time.Time) {
	if qty == 0 {
		return
	}
	a.fills++

	h, ok := a.holdings[symbol]
	if !ok {
		a.holdings[symbol] = &holding{qty: qty, avgPrice: price, openedAt: t}
		return
	}

	if (h.qty > 0) == (qty > 0) {
		total := h.qty + qty
		h.avgPrice = h.avgPrice.MulInt64(h.qty).Add(price.MulInt64(qty)).DivInt64(total)
		h.qty = total
		return
	}

	closed := min(abs(qty), abs(h.qty))
	if h.qty < 0 {
		closed = -closed
	}
	a.trades = append(a.trades, Trade{
		Symbol:     symbol,
		Qty:        closed,
		EntryPrice: h.avgPrice,
		ExitPrice:  price,
		OpenedAt:   h.openedAt,
		ClosedAt:   t,
		Profit:     price.Sub(h.avgPrice).MulInt64(closed),
	})

	h.qty += qty
	switch {
	case h.qty == 0:
		delete(a.holdings, symbol)
	case (h.qty > 0) == (qty > 0):
		// flipped through zero; the remainder opens a new holding
		h.avgPrice = price
		h.openedAt = t
	}
}

func (a *Audit) Trades() []Trade {
	return append([]Trade(nil), a.trades...)
}

func (a *Audit) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, balance common.Balance) {
		a.balance = balance.Value
		handler(ctx, balance)
	}
}

func (a *Audit) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return func(ctx context.Context, equity common.Equity) {
		a.AddAccountSnapshot(a.balance, equity.Value, equity.TimeStamp)
		handler(ctx, equity)
	}
}

func (a *Audit) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		a.AddFill(filled.OriginalOrder.Symbol, filled.Qty, filled.Price, filled.TimeStamp)
		handler(ctx, filled)
	}
}

func (a *Audit) WithInterestCharged(handler bus.InterestChargedEventHandler) bus.InterestChargedEventHandler {
	return func(ctx context.Context, charged common.InterestCharged) {
		a.interest = a.interest.Add(charged.Interest)
		a.borrowFees = a.borrowFees.Add(charged.BorrowFee)
		handler(ctx, charged)
	}
}

func (a *Audit) WithMarginCall(handler bus.MarginCallEventHandler) bus.MarginCallEventHandler {
	return func(ctx context.Context, call common.MarginCall) {
		a.marginCalls++
		handler(ctx, call)
	}
}

func (a *Audit) GenerateReport() (Report, error) {
	if len(a.accountSnapshots) == 0 {
		return Report{}, ErrNoSnapshots
	}

	first := a.accountSnapshots[0]
	last := a.accountSnapshots[len(a.accountSnapshots)-1]

	report := Report{
		StartDate:      first.t,
		EndDate:        last.t,
		InitialEquity:  first.equity,
		FinalEquity:    last.equity,
		FinalBalance:   last.balance,
		Fills:          a.fills,
		InterestPaid:   a.interest,
		BorrowFeesPaid: a.borrowFees,
		MarginCalls:    a.marginCalls,
	}

	if report.InitialEquity.IsPos() {
		ratio := report.FinalEquity.Div(report.InitialEquity)
		report.TotalProfit = ratio.Sub(fixed.One).MulInt64(100).Rescale(2)
		if report.FinalEquity.IsPos() {
			report.AnnualizedReturn = a.annualize(ratio)
		}
	}

	maxEquity := report.InitialEquity
	for _, snapshot := range a.accountSnapshots {
		if snapshot.equity.Gt(maxEquity) {
			maxEquity = snapshot.equity
		}
		if !maxEquity.IsPos() {
			continue
		}
		if drawdown := maxEquity.Sub(snapshot.equity).Div(maxEquity); drawdown.Gt(report.MaxDrawdown) {
			report.MaxDrawdown = drawdown
		}
	}

	var (
		totalDuration time.Duration
		totalProfit   fixed.Point
		totalLoss     fixed.Point
	)
	for _, trade := range a.trades {
		report.TotalTrades++
		totalDuration += trade.ClosedAt.Sub(trade.OpenedAt)

		if trade.Profit.IsPos() {
			totalProfit = totalProfit.Add(trade.Profit)
			report.WinningTrades++
		} else {
			totalLoss = totalLoss.Add(trade.Profit.Neg())
			report.LosingTrades++
		}
	}

	if report.WinningTrades > 0 {
		report.AverageWin = totalProfit.DivInt(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = totalLoss.DivInt(report.LosingTrades)
	}
	if totalLoss.IsPos() {
		report.ProfitFactor = totalProfit.Div(totalLoss)
	}
	if report.AverageLoss.IsPos() {
		report.RiskRewardRatio = report.AverageWin.Div(report.AverageLoss)
	}
	if report.TotalTrades > 0 {
		report.Expectancy = totalProfit.Sub(totalLoss).DivInt(report.TotalTrades)
		report.AverageTradeDuration = totalDuration / time.Duration(report.TotalTrades)
		report.WinRate = fixed.FromInt(report.WinningTrades, 0).DivInt(report.TotalTrades).MulInt64(100).Rescale(2)
	}
	if report.MaxDrawdown.IsPos() {
		report.RecoveryFactor = report.TotalProfit.Div(report.MaxDrawdown.MulInt64(100))
	}
	report.MaxDrawdown = report.MaxDrawdown.MulInt64(100).Rescale(2)

	dailyReturns := a.dailyReturns()
	meanReturn := fixed.Mean(dailyReturns)
	vol := fixed.StdDev(dailyReturns, meanReturn)

	if !meanReturn.IsZero() && !vol.IsZero() {
		report.AnnualizedVolatility = vol.Mul(fixed.Sqrt252).MulInt64(100).Rescale(2)
		report.SharpeRatio = fixed.SharpeRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
		report.SortinoRatio = fixed.SortinoRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
	}

	return report, nil
}

// annualize compounds the total return ratio over a year. A rate too large for a decimal is
// reported as zero.
func (a *Audit) annualize(ratio fixed.Point) fixed.Point {
	exponent := fixed.FromInt64(36500, 2).DivInt64(int64(a.dayCount()))
	yearly, err := ratio.TryPow(exponent)
	if err == nil {
		yearly, err = yearly.Sub(fixed.One).TryMulInt64(100)
	}
	if err != nil {
		return fixed.Zero
	}
	return yearly.Rescale(2)
}

func (a *Audit) dayCount() int {
	first := a.accountSnapshots[0].t
	last := a.accountSnapshots[len(a.accountSnapshots)-1].t
	return int(last.Sub(first).Hours()/24) + 1
}

// dailyReturns compares the first snapshot of every UTC day with the first one of the day before.
func (a *Audit) dailyReturns() []fixed.Point {
	var dailyReturns []fixed.Point
	if len(a.accountSnapshots) < 2 {
		return dailyReturns
	}

	var (
		prevDate   = a.accountSnapshots[0].t.Truncate(24 * time.Hour)
		prevEquity = a.accountSnapshots[0].equity
	)

	for _, snapshot := range a.accountSnapshots[1:] {
		currDate := snapshot.t.Truncate(24 * time.Hour)
		if !currDate.After(prevDate) {
			continue
		}
		if prevEquity.IsPos() {
			dailyReturns = append(dailyReturns, snapshot.equity.Div(prevEquity).Sub(fixed.One))
		}
		prevDate = currDate
		prevEquity = snapshot.equity
	}

	return dailyReturns
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
