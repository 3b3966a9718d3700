package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/exchange/sandbox"
)

// runner applies the scenario actions whose time has come. An action is applied at the first
// step at or after its time, so a coarse step delays it.
type runner struct {
	logger  *zap.Logger
	actions []action
	next    int
	refs    map[string]common.OrderId
}

func newRunner(logger *zap.Logger, actions []action) *runner {
	return &runner{
		logger:  logger.Named("runner"),
		actions: actions,
		refs:    make(map[string]common.OrderId),
	}
}

func (r *runner) step(_ context.Context, sim *sandbox.Simulator, t time.Time) error {
	for ; r.next < len(r.actions) && !r.actions[r.next].at.After(t); r.next++ {
		if err := r.apply(sim, r.actions[r.next]); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) apply(sim *sandbox.Simulator, act action) error {
	switch act.kind {
	case actionDeposit:
		sim.AddFunds(act.amount)
		r.logger.Info("funds added", zap.Stringer("amount", act.amount), zap.Stringer("balance", sim.Balance()))

	case actionWithdraw:
		sim.RemoveFunds(act.amount)
		r.logger.Info("funds removed", zap.Stringer("amount", act.amount), zap.Stringer("balance", sim.Balance()))

	case actionCancel:
		id, ok := r.refs[act.ref]
		if !ok {
			r.logger.Warn("cancel before the order was placed", zap.String("ref", act.ref))
			return nil
		}
		if err := sim.CancelOrder(id); err != nil {
			if errors.Is(err, sandbox.ErrOrderNotOpen) {
				r.logger.Info("order no longer cancellable", zap.String("ref", act.ref), zap.Error(err))
				return nil
			}
			return err
		}

	case actionOrder:
		id, err := sim.PlaceOrder(act.plan)
		if err != nil {
			return err
		}
		if act.ref != "" {
			r.refs[act.ref] = id
		}
	}
	return nil
}

// pending reports the actions never applied, which only happens when the replay stopped early.
func (r *runner) pending() int {
	return len(r.actions) - r.next
}
