package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/exchange/sandbox"
)

var ErrInvalidStep = errors.New("step must be positive")

// StepFunc is called after the clock reached t. Orders placed from it are filled by the
// following steps.
type StepFunc func(ctx context.Context, sim *sandbox.Simulator, t time.Time) error

// Executor walks a simulator clock from its current time to a fixed end in equal steps. When
// a router is given, its queue is drained after every step on the calling goroutine.
type Executor struct {
	logger    *zap.Logger
	simulator *sandbox.Simulator
	router    *bus.Router

	to   time.Time
	step time.Duration
}

func NewExecutor(logger *zap.Logger, simulator *sandbox.Simulator, router *bus.Router, to time.Time, step time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		logger:    logger.Named("executor"),
		simulator: simulator,
		router:    router,
		to:        to.UTC(),
		step:      step,
	}
}

func (e *Executor) Run(ctx context.Context, onStep StepFunc) error {
	if e.step <= 0 {
		return ErrInvalidStep
	}

	from := e.simulator.Clock()
	e.logger.Info("replay started", zap.Time("from", from), zap.Time("to", e.to), zap.Duration("step", e.step))

	if onStep != nil {
		if err := onStep(ctx, e.simulator, from); err != nil {
			return err
		}
	}
	e.drain(ctx)

	steps := 0
	for t := from; t.Before(e.to); {
		if err := ctx.Err(); err != nil {
			return err
		}

		t = t.Add(e.step)
		if t.After(e.to) {
			t = e.to
		}

		if err := e.simulator.AdvanceClock(t); err != nil {
			return fmt.Errorf("advancing to %s: %w", t.Format(time.RFC3339), err)
		}
		if onStep != nil {
			if err := onStep(ctx, e.simulator, t); err != nil {
				return err
			}
		}
		e.drain(ctx)
		steps++
	}

	e.logger.Info("replay finished", zap.Int("steps", steps), zap.Stringer("balance", e.simulator.Balance()))
	return nil
}

func (e *Executor) drain(ctx context.Context) {
	if e.router != nil {
		e.router.Drain(ctx)
	}
}
