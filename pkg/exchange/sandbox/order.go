package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility"
)

func validatePlan(plan common.OrderPlan) error {
	switch plan.Type {
	case common.OrderTypeMarket, common.OrderTypeLimit:
	default:
		return fmt.Errorf("%s: %w", plan.Type, ErrUnsupportedOrderType)
	}
	switch plan.TimeInForce {
	case common.TimeInForceDay, common.TimeInForceGoodTillCancel:
	default:
		return fmt.Errorf("%s: %w", plan.TimeInForce, ErrUnsupportedTimeInForce)
	}
	if plan.Class != common.OrderClassSimple {
		return fmt.Errorf("%s: %w", plan.Class, ErrUnsupportedOrderClass)
	}
	return nil
}

// PlaceOrder validates plan and records it as an order. Unsupported plans fail without any state
// change. Orders the account cannot carry are recorded as REJECTED and their id is returned
// without error.
func (s *Simulator) PlaceOrder(plan common.OrderPlan) (common.OrderId, error) {
	if err := validatePlan(plan); err != nil {
		return 0, err
	}

	o := &orderState{Order: common.Order{
		OrderPlan:   plan,
		CreatedAt:   s.clock,
		UpdatedAt:   s.clock,
		SubmittedAt: s.clock,
	}}
	if n := len(s.orders); n > 0 {
		o.Id = s.orders[n-1].Id + 1
	}

	var reasons []string
	var err error
	switch {
	case plan.Qty > 0:
		reasons, err = s.validateBuy(plan)
	case plan.Qty < 0:
		reasons, err = s.validateSell(plan)
	default:
		reasons = []string{"zero quantity"}
	}
	if err != nil {
		return 0, fmt.Errorf("validating %s order: %w", plan.Symbol, err)
	}

	if plan.Qty < 0 && s.wouldBeShort(plan) {
		// shorts are opened first and then rejected at the same instant
		s.setOrderStatus(o, common.OrderStatusOpen, s.clock)
	}
	if len(reasons) > 0 {
		s.reject(o, strings.Join(reasons, ", "))
	} else {
		if len(o.StatusHistory) == 0 {
			s.setOrderStatus(o, common.OrderStatusOpen, s.clock)
		}
		s.logger.Debug("order accepted", zap.Int64("id", o.Id), zap.String("symbol", o.Symbol), zap.Int64("qty", o.Qty))
		s.post(bus.OrderAcceptanceEvent, common.OrderAccepted{
			OriginalOrder: o.Clone(),
			Source:        simulatorComponentName,
			ExecutionId:   utility.GetExecutionID(),
			TraceID:       utility.CreateTraceID(),
			TimeStamp:     s.clock,
		})
	}

	s.orders = append(s.orders, o)

	if s.instaFill {
		if err := s.updateState(); err != nil {
			return o.Id, err
		}
	}

	return o.Id, nil
}

func (s *Simulator) reject(o *orderState, reason string) {
	s.setOrderStatus(o, common.OrderStatusRejected, s.clock)
	o.FailedAt = s.clock

	s.logger.Warn("order rejected", zap.Int64("id", o.Id), zap.String("symbol", o.Symbol), zap.Int64("qty", o.Qty), zap.String("reason", reason))
	s.post(bus.OrderRejectionEvent, common.OrderRejected{
		OriginalOrder: o.Clone(),
		Reason:        reason,
		Source:        simulatorComponentName,
		ExecutionId:   utility.GetExecutionID(),
		TraceID:       utility.CreateTraceID(),
		TimeStamp:     s.clock,
	})
}

func (s *Simulator) validateBuy(plan common.OrderPlan) ([]string, error) {
	price, err := s.source.Price(plan.Symbol, s.clock)
	if errors.Is(err, datasource.ErrPriceUnavailable) {
		return []string{"no price available"}, nil
	}
	if err != nil {
		return nil, err
	}
	if plan.Type == common.OrderTypeLimit && price.Gt(plan.LimitPrice) {
		price = plan.LimitPrice
	}

	marginable, err := s.source.IsMarginable(plan.Symbol, s.clock)
	if errors.Is(err, datasource.ErrSymbolUnknown) {
		return []string{"unknown symbol"}, nil
	}
	if err != nil {
		return nil, err
	}

	buyingPower, err := s.buyingPower(s.marginEnabled && marginable)
	if err != nil {
		return nil, err
	}
	if buyingPower.Lt(price.MulInt64(plan.Qty)) {
		return []string{"insufficient buying power"}, nil
	}
	return nil, nil
}

func (s *Simulator) wouldBeShort(plan common.OrderPlan) bool {
	return s.positionQty(plan.Symbol)+plan.Qty < 0
}

func (s *Simulator) validateSell(plan common.OrderPlan) ([]string, error) {
	if !s.wouldBeShort(plan) {
		return nil, nil
	}

	var reasons []string
	if !s.marginEnabled {
		reasons = append(reasons, "margin disabled")
	}

	flags := []struct {
		reason string
		check  func(string, time.Time) (bool, error)
	}{
		{"not shortable", s.source.IsShortable},
		{"not easy to borrow", s.source.IsEasyToBorrow},
	}
	for _, flag := range flags {
		ok, err := flag.check(plan.Symbol, s.clock)
		if errors.Is(err, datasource.ErrSymbolUnknown) {
			return append(reasons, "unknown symbol"), nil
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons = append(reasons, flag.reason)
		}
	}

	if s.positionQty(plan.Symbol) > 0 {
		reasons = append(reasons, "existing long position")
	}

	price, err := s.source.Price(plan.Symbol, s.clock)
	if errors.Is(err, datasource.ErrPriceUnavailable) {
		return append(reasons, "no price available"), nil
	}
	if err != nil {
		return nil, err
	}
	buyingPower, err := s.BuyingPower()
	if err != nil {
		return nil, err
	}
	if buyingPower.Lt(price.MulInt64(plan.Qty).Abs()) {
		reasons = append(reasons, "insufficient buying power")
	}

	return reasons, nil
}

func (s *Simulator) CancelOrder(id common.OrderId) error {
	o, err := s.order(id)
	if err != nil {
		return err
	}
	if o.Status != common.OrderStatusOpen {
		return fmt.Errorf("order %d is %s: %w", id, o.Status, ErrOrderNotOpen)
	}
	if o.IsFilled() {
		return fmt.Errorf("order %d is filled: %w", id, ErrOrderNotOpen)
	}

	s.setOrderStatus(o, common.OrderStatusCancelled, s.clock)
	o.CanceledAt = s.clock

	s.logger.Debug("order cancelled", zap.Int64("id", o.Id), zap.Int64("filled_qty", o.FilledQty))
	s.post(bus.OrderCancelEvent, common.OrderCancelled{
		OriginalOrder: o.Clone(),
		CancelledQty:  o.Qty - o.FilledQty,
		Source:        simulatorComponentName,
		ExecutionId:   utility.GetExecutionID(),
		TraceID:       utility.CreateTraceID(),
		TimeStamp:     s.clock,
	})
	return nil
}

func (s *Simulator) order(id common.OrderId) (*orderState, error) {
	idx := sort.Search(len(s.orders), func(i int) bool { return s.orders[i].Id >= id })
	if idx < len(s.orders) && s.orders[idx].Id == id {
		return s.orders[idx], nil
	}
	return nil, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
}

func (s *Simulator) Order(id common.OrderId) (common.Order, error) {
	o, err := s.order(id)
	if err != nil {
		return common.Order{}, err
	}
	return o.Clone(), nil
}

func (s *Simulator) Orders() []common.Order {
	orders := make([]common.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o.Clone())
	}
	return orders
}

func (s *Simulator) setOrderStatus(o *orderState, status common.OrderStatus, t time.Time) {
	o.Status = status
	if t.After(o.UpdatedAt) {
		o.UpdatedAt = t
	}
	o.StatusHistory = append(o.StatusHistory, common.OrderStatusEntry{Status: status, TimeStamp: t})
	sort.SliceStable(o.StatusHistory, func(i, j int) bool {
		return o.StatusHistory[i].TimeStamp.Before(o.StatusHistory[j].TimeStamp)
	})
}

// updateOrderTIF expires open, unfilled DAY orders once the clock reaches the first change away from OPEN
// after creation, or the first change to CLOSED for extended hours orders. Fills up to the expiry are
// applied first, so an order that completes before it never expires.
func (s *Simulator) updateOrderTIF(o *orderState) error {
	if o.Status != common.OrderStatusOpen || o.TimeInForce != common.TimeInForceDay || o.IsFilled() {
		return nil
	}

	filter := datasource.PhaseChangeFrom(common.MarketPhaseOpen)
	if o.ExtendedHours {
		filter = datasource.PhaseChangeTo(common.MarketPhaseClosed)
	}

	change, err := s.source.NextPhaseChange(o.CreatedAt, filter)
	if errors.Is(err, datasource.ErrPhaseChangeUnknown) {
		return nil
	}
	if err != nil {
		return err
	}

	expires := change.TimeStamp
	if s.clock.Before(expires) {
		return nil
	}

	if err := s.fillUntil(o, expires); err != nil {
		return err
	}
	if o.IsFilled() {
		return nil
	}

	s.setOrderStatus(o, common.OrderStatusExpired, expires)
	o.ExpiredAt = expires

	s.logger.Debug("order expired", zap.Int64("id", o.Id), zap.Time("expires", expires), zap.Int64("filled_qty", o.FilledQty))
	s.post(bus.OrderExpiredEvent, common.OrderExpired{
		OriginalOrder: o.Clone(),
		ExpiredQty:    o.Qty - o.FilledQty,
		Source:        simulatorComponentName,
		ExecutionId:   utility.GetExecutionID(),
		TraceID:       utility.CreateTraceID(),
		TimeStamp:     expires,
	})
	return nil
}
