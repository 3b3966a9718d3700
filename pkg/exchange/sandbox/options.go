package sandbox

import (
	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

type Option func(*Simulator)
type MarginCallHandler func()
type PDTCallHandler func()

// WithRouter makes the simulator post order and account events.
func WithRouter(router *bus.Router) Option {
	return func(s *Simulator) {
		s.router = router
	}
}

func WithFillRateEstimator(estimator FillRateEstimator) Option {
	return func(s *Simulator) {
		s.fillRate = estimator
	}
}

func WithInitialMarginRequirement(requirement fixed.Point) Option {
	return func(s *Simulator) {
		s.initialMarginRequirement = requirement
	}
}

func WithMaintenanceMarginRequirement(requirement fixed.Point) Option {
	return func(s *Simulator) {
		s.maintenanceMarginRequirement = requirement
	}
}

func WithInterestRate(rate fixed.Point) Option {
	return func(s *Simulator) {
		s.interestRate = rate
	}
}

func WithShortRoundLotFee(enabled bool) Option {
	return func(s *Simulator) {
		s.shortRoundLotFee = enabled
	}
}

func WithInstaFill(enabled bool) Option {
	return func(s *Simulator) {
		s.instaFill = enabled
	}
}

func WithMarginCallHandler(handler MarginCallHandler) Option {
	return func(s *Simulator) {
		s.marginCallHandler = handler
	}
}

func WithStartingBalance(balance fixed.Point) Option {
	return func(s *Simulator) {
		s.balance = balance
	}
}
