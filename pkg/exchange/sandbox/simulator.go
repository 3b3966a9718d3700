package sandbox

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

const simulatorComponentName = "exchange.sandbox.simulator"

var (
	defaultInitialMarginRequirement     = fixed.FromFloat64(0.5)
	defaultMaintenanceMarginRequirement = fixed.FromFloat64(0.35)
	defaultInterestRate                 = fixed.FromFloat64(0.0375)
)

type orderState struct {
	common.Order
	doneFilling bool
}

// Simulator is a simulated stock brokerage account driven by an explicit clock. It fills orders
// against minute bars supplied by a StockDataSource and keeps cash, positions, margin loan and
// interest accrual in step with the clock.
//
// A Simulator is not safe for concurrent use.
type Simulator struct {
	logger *zap.Logger
	source datasource.StockDataSource
	router *bus.Router

	fillRate                     FillRateEstimator
	marginEnabled                bool
	initialMarginRequirement     fixed.Point
	maintenanceMarginRequirement fixed.Point
	interestRate                 fixed.Point
	shortRoundLotFee             bool
	instaFill                    bool

	marginCallHandler MarginCallHandler
	pdtCallHandler    PDTCallHandler

	balance          fixed.Point
	clock            time.Time
	lastInterestTime time.Time

	orders         []*orderState
	positions      []*common.Position
	nextPositionId common.PositionId

	dayTrades        []time.Time
	positionDays     map[string]time.Time
	patternDayTrader bool
}

func NewSimulator(logger *zap.Logger, source datasource.StockDataSource, start time.Time, margin bool, options ...Option) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Simulator{
		logger:                       logger.Named(simulatorComponentName),
		source:                       source,
		fillRate:                     UnboundedFillRate,
		marginEnabled:                margin,
		initialMarginRequirement:     defaultInitialMarginRequirement,
		maintenanceMarginRequirement: defaultMaintenanceMarginRequirement,
		interestRate:                 defaultInterestRate,
		shortRoundLotFee:             true,
		balance:                      fixed.Zero,
		clock:                        start.UTC(),
		lastInterestTime:             start.UTC(),
		positionDays:                 make(map[string]time.Time),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// AdvanceClock moves the clock forward to t. With margin enabled every market close between the
// last interest accrual and t is visited first, in order, and interest is charged there.
func (s *Simulator) AdvanceClock(t time.Time) error {
	t = t.UTC()
	if t.Before(s.clock) {
		return fmt.Errorf("advancing from %s to %s: %w", s.clock.Format(time.RFC3339), t.Format(time.RFC3339), ErrTimeTravel)
	}

	lastBalance := s.balance

	if s.marginEnabled {
		if err := s.accrueInterestUntil(t); err != nil {
			return err
		}
	}

	if err := s.step(t); err != nil {
		return err
	}

	if !lastBalance.Eq(s.balance) {
		s.postBalance()
	}
	s.postEquity()
	return nil
}

func (s *Simulator) step(t time.Time) error {
	if t.Equal(s.clock) {
		return nil
	}
	s.clock = t
	return s.updateState()
}

func (s *Simulator) updateState() error {
	for _, o := range s.orders {
		if err := s.updateOrderTIF(o); err != nil {
			return fmt.Errorf("order %d: %w", o.Id, err)
		}
		if err := s.updateOrderFillState(o); err != nil {
			return fmt.Errorf("order %d: %w", o.Id, err)
		}
	}

	if s.marginEnabled && (s.marginCallHandler != nil || s.router != nil) {
		call, equity, loan, err := s.marginCall()
		if err != nil {
			return err
		}
		if call {
			s.notifyMarginCall(equity, loan)
		}
	}
	return nil
}

func (s *Simulator) Clock() time.Time {
	return s.clock
}

func (s *Simulator) Balance() fixed.Point {
	return s.balance
}

func (s *Simulator) AddFunds(amount fixed.Point) {
	s.balance = s.balance.Add(amount)
	s.postBalance()
}

func (s *Simulator) RemoveFunds(amount fixed.Point) {
	s.balance = s.balance.Sub(amount)
	s.postBalance()
}

func (s *Simulator) MarginEnabled() bool {
	return s.marginEnabled
}

func (s *Simulator) SetMarginCallHandler(handler MarginCallHandler) {
	s.marginCallHandler = handler
}

func (s *Simulator) SetPDTCallHandler(handler PDTCallHandler) {
	s.pdtCallHandler = handler
}

func (s *Simulator) SetInitialMarginRequirement(requirement fixed.Point) {
	s.initialMarginRequirement = requirement
}

func (s *Simulator) InitialMarginRequirement() fixed.Point {
	return s.initialMarginRequirement
}

func (s *Simulator) SetMaintenanceMarginRequirement(requirement fixed.Point) {
	s.maintenanceMarginRequirement = requirement
}

func (s *Simulator) MaintenanceMarginRequirement() fixed.Point {
	return s.maintenanceMarginRequirement
}

func (s *Simulator) SetInterestRate(rate fixed.Point) {
	s.interestRate = rate
}

func (s *Simulator) InterestRate() fixed.Point {
	return s.interestRate
}

func (s *Simulator) SetShortRoundLotFee(enabled bool) {
	s.shortRoundLotFee = enabled
}

func (s *Simulator) ShortRoundLotFee() bool {
	return s.shortRoundLotFee
}

func (s *Simulator) SetInstaFill(enabled bool) {
	s.instaFill = enabled
}

func (s *Simulator) InstaFill() bool {
	return s.instaFill
}

func (s *Simulator) post(id bus.EventId, data interface{}) {
	if s.router == nil {
		return
	}
	if err := s.router.Post(id, data); err != nil {
		s.logger.Warn("unable to post event", zap.Stringer("event", id), zap.Error(err))
	}
}

func (s *Simulator) postBalance() {
	s.post(bus.BalanceEvent, common.Balance{
		Source:      simulatorComponentName,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   s.clock,
		Value:       s.balance,
	})
}

func (s *Simulator) postEquity() {
	if s.router == nil {
		return
	}
	equity, err := s.Equity()
	if err != nil {
		s.logger.Warn("unable to compute equity", zap.Error(err))
		return
	}
	s.post(bus.EquityEvent, common.Equity{
		Source:      simulatorComponentName,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   s.clock,
		Value:       equity,
	})
}
