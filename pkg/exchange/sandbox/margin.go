package sandbox

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

var (
	daysPerYear  = fixed.FromInt(360, 0)
	roundLotSize = int64(100)
)

// markPrice values a position at the current clock. Without a price the entry price is used.
func (s *Simulator) markPrice(p *common.Position) (fixed.Point, error) {
	price, err := s.source.Price(p.Symbol, s.clock)
	if errors.Is(err, datasource.ErrPriceUnavailable) {
		return p.AvgEntryPrice, nil
	}
	if err != nil {
		return fixed.Zero, fmt.Errorf("unable to price %s: %w", p.Symbol, err)
	}
	return price, nil
}

// shortSaleProceeds is the cash received for shares sold short, which cannot serve as collateral.
func (s *Simulator) shortSaleProceeds() fixed.Point {
	proceeds := fixed.Zero
	for _, p := range s.positions {
		if p.IsShort() {
			proceeds = proceeds.Add(p.AvgEntryPrice.MulInt64(-p.Qty))
		}
	}
	return proceeds
}

func (s *Simulator) Equity() (fixed.Point, error) {
	equity := s.balance
	for _, p := range s.positions {
		price, err := s.markPrice(p)
		if err != nil {
			return fixed.Zero, err
		}
		equity = equity.Add(price.MulInt64(p.Qty))
	}
	return equity, nil
}

func (s *Simulator) Loan() (fixed.Point, error) {
	if !s.marginEnabled {
		return fixed.Zero, nil
	}

	loan := fixed.Max(s.balance.Sub(s.shortSaleProceeds()).Neg(), fixed.Zero)
	for _, p := range s.positions {
		if !p.IsShort() {
			continue
		}
		price, err := s.markPrice(p)
		if err != nil {
			return fixed.Zero, err
		}
		loan = loan.Add(price.MulInt64(-p.Qty))
	}
	return loan, nil
}

func (s *Simulator) BuyingPower() (fixed.Point, error) {
	return s.buyingPower(s.marginEnabled)
}

// buyingPower is the collateral leveraged by the initial margin requirement, less the notional of
// every open order that is not closing a long.
func (s *Simulator) buyingPower(margin bool) (fixed.Point, error) {
	buyingPower := s.balance

	if margin {
		assets := fixed.Zero
		for _, p := range s.positions {
			price, err := s.markPrice(p)
			if err != nil {
				return fixed.Zero, err
			}
			assets = assets.Add(price.MulInt64(p.Qty))
		}

		collateral := s.balance.Sub(s.shortSaleProceeds()).Add(assets)
		buyingPower = collateral.Div(s.initialMarginRequirement).Sub(assets)
	}

	for _, o := range s.orders {
		if o.Status != common.OrderStatusOpen || o.FilledQty == o.Qty {
			continue
		}
		if o.Qty < 0 && s.positionQty(o.Symbol) > 0 {
			continue
		}

		remaining := abs(o.Qty - o.FilledQty)
		if o.Type == common.OrderTypeLimit {
			buyingPower = buyingPower.Sub(o.LimitPrice.MulInt64(remaining))
			continue
		}

		price, err := s.source.Price(o.Symbol, s.clock)
		if errors.Is(err, datasource.ErrPriceUnavailable) {
			continue
		}
		if err != nil {
			return fixed.Zero, fmt.Errorf("unable to price %s: %w", o.Symbol, err)
		}
		buyingPower = buyingPower.Sub(price.MulInt64(remaining))
	}

	return buyingPower, nil
}

func (s *Simulator) CheckForMarginCall() (bool, error) {
	call, _, _, err := s.marginCall()
	return call, err
}

// marginCall reports whether equity over loan is below the maintenance requirement, together with
// the equity and loan it was decided on.
func (s *Simulator) marginCall() (bool, fixed.Point, fixed.Point, error) {
	if !s.marginEnabled {
		return false, fixed.Zero, fixed.Zero, nil
	}

	loan, err := s.Loan()
	if err != nil || !loan.IsPos() {
		return false, fixed.Zero, loan, err
	}
	equity, err := s.Equity()
	if err != nil {
		return false, fixed.Zero, loan, err
	}
	return equity.Div(loan).Lt(s.maintenanceMarginRequirement), equity, loan, nil
}

func (s *Simulator) notifyMarginCall(equity, loan fixed.Point) {
	s.logger.Warn("margin call", zap.Time("clock", s.clock), zap.String("equity", equity.String()), zap.String("loan", loan.String()))
	s.post(bus.MarginCallEvent, common.MarginCall{
		Equity:      equity,
		Loan:        loan,
		Requirement: s.maintenanceMarginRequirement,
		Source:      simulatorComponentName,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   s.clock,
	})

	if s.marginCallHandler != nil {
		s.marginCallHandler()
	}
}

// accrueInterestUntil walks every market close after the last accrual and before t, advancing
// the clock to it and charging one day of interest there.
func (s *Simulator) accrueInterestUntil(t time.Time) error {
	for {
		change, err := s.source.NextPhaseChange(s.lastInterestTime, datasource.PhaseChangeTo(common.MarketPhaseClosed))
		if errors.Is(err, datasource.ErrPhaseChangeUnknown) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("unable to find market close after %s: %w", s.lastInterestTime.Format(time.RFC3339), err)
		}
		if !change.TimeStamp.Before(t) {
			return nil
		}

		if err := s.step(change.TimeStamp); err != nil {
			return err
		}
		if err := s.chargeDayInterest(); err != nil {
			return err
		}
	}
}

// chargeDayInterest charges a day of margin interest on the cash deficit and a day of borrow
// fees on every short position.
func (s *Simulator) chargeDayInterest() error {
	interest := fixed.Zero
	if cash := s.balance.Sub(s.shortSaleProceeds()); cash.IsNeg() {
		interest = cash.Abs().Mul(s.interestRate).Div(daysPerYear)
	}

	borrowFee := fixed.Zero
	for _, p := range s.positions {
		if !p.IsShort() {
			continue
		}

		price, err := s.markPrice(p)
		if err != nil {
			return err
		}
		rate, err := s.source.BorrowRate(p.Symbol, s.clock)
		if err != nil {
			return fmt.Errorf("unable to get %s borrow rate: %w", p.Symbol, err)
		}

		qty := -p.Qty
		if s.shortRoundLotFee {
			qty = roundUpToLot(qty)
		}
		borrowFee = borrowFee.Add(price.MulInt64(qty).Mul(rate).Div(daysPerYear))
	}

	s.balance = s.balance.Sub(interest).Sub(borrowFee)
	s.lastInterestTime = s.clock

	s.logger.Debug("interest charged",
		zap.Time("clock", s.clock),
		zap.String("interest", interest.String()),
		zap.String("borrow_fee", borrowFee.String()),
		zap.String("balance", s.balance.String()))

	if !interest.IsZero() || !borrowFee.IsZero() {
		s.post(bus.InterestChargedEvent, common.InterestCharged{
			Interest:    interest,
			BorrowFee:   borrowFee,
			Source:      simulatorComponentName,
			ExecutionId: utility.GetExecutionID(),
			TraceID:     utility.CreateTraceID(),
			TimeStamp:   s.clock,
		})
	}
	return nil
}

func roundUpToLot(qty int64) int64 {
	if qty <= 0 {
		return 0
	}
	return ((qty-1)/roundLotSize)*roundLotSize + roundLotSize
}
