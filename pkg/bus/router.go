package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/common"
)

var ErrCapacityReached = errors.New("event capacity reached")

type event struct {
	id   EventId
	data interface{}
}

// Router queues events on a buffered channel and dispatches them to the On* handlers from the
// goroutine started by Exec. Post never blocks. Handlers must be set before Exec.
type Router struct {
	logger *zap.Logger
	events chan event

	OnBar              BarEventHandler
	OnEquity           EquityEventHandler
	OnBalance          BalanceEventHandler
	OnOrderAcceptance  OrderAcceptanceEventHandler
	OnOrderRejection   OrderRejectionEventHandler
	OnOrderFilled      OrderFilledEventHandler
	OnOrderCancel      OrderCancelEventHandler
	OnOrderExpired     OrderExpiredEventHandler
	OnMarginCall       MarginCallEventHandler
	OnInterestCharged  InterestChargedEventHandler
	OnPatternDayTrader PatternDayTraderEventHandler

	runTime       atomic.Int64
	postCount     atomic.Uint64
	postFails     atomic.Uint64
	dispatchCount atomic.Uint64
	dispatchFails atomic.Uint64
}

func NewRouter(logger *zap.Logger, eventCapacity int) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		logger: logger,
		events: make(chan event, eventCapacity),
	}
}

func (r *Router) Post(id EventId, data interface{}) error {
	select {
	case r.events <- event{id, data}:
		r.postCount.Add(1)
		return nil
	default:
		r.postFails.Add(1)
		return fmt.Errorf("posting %s: %w", id, ErrCapacityReached)
	}
}

// Exec dispatches events until ctx is done. The returned channel receives the context error
// once the loop has stopped.
func (r *Router) Exec(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	go func() {
		start := time.Now()

		for {
			select {
			case <-ctx.Done():
				r.runTime.Add(int64(time.Since(start)))
				done <- ctx.Err()
				return
			case ev := <-r.events:
				r.handle(ctx, ev)
			}
		}
	}()

	return done
}

// Drain dispatches the queued events on the calling goroutine and returns when the queue is
// empty. Used by single goroutine backtests which do not run Exec.
func (r *Router) Drain(ctx context.Context) {
	for {
		select {
		case ev := <-r.events:
			r.handle(ctx, ev)
		default:
			return
		}
	}
}

func (r *Router) handle(ctx context.Context, ev event) {
	r.dispatchCount.Add(1)
	if err := r.dispatch(ctx, ev); err != nil {
		r.dispatchFails.Add(1)
		r.logger.Warn("dispatch failed", zap.Error(err), zap.Stringer("event", ev.id))
	}
}

func (r *Router) Statistics() Statistics {
	runTime := time.Duration(r.runTime.Load())
	stats := Statistics{
		RunTime:       runTime,
		PostCount:     r.postCount.Load(),
		PostFails:     r.postFails.Load(),
		DispatchCount: r.dispatchCount.Load(),
		DispatchFails: r.dispatchFails.Load(),
	}
	if runTime > 0 {
		stats.Throughput = float64(stats.DispatchCount) / runTime.Seconds()
	}
	return stats
}

func dispatchAs[T any](ctx context.Context, ev event, handler func(context.Context, T)) error {
	data, ok := ev.data.(T)
	if !ok {
		return fmt.Errorf("invalid type assertion for %s event: %T", ev.id, ev.data)
	}
	if handler != nil {
		handler(ctx, data)
	}
	return nil
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case BarEvent:
		return dispatchAs[common.Bar](ctx, ev, r.OnBar)
	case EquityEvent:
		return dispatchAs[common.Equity](ctx, ev, r.OnEquity)
	case BalanceEvent:
		return dispatchAs[common.Balance](ctx, ev, r.OnBalance)
	case OrderAcceptanceEvent:
		return dispatchAs[common.OrderAccepted](ctx, ev, r.OnOrderAcceptance)
	case OrderRejectionEvent:
		return dispatchAs[common.OrderRejected](ctx, ev, r.OnOrderRejection)
	case OrderFilledEvent:
		return dispatchAs[common.OrderFilled](ctx, ev, r.OnOrderFilled)
	case OrderCancelEvent:
		return dispatchAs[common.OrderCancelled](ctx, ev, r.OnOrderCancel)
	case OrderExpiredEvent:
		return dispatchAs[common.OrderExpired](ctx, ev, r.OnOrderExpired)
	case MarginCallEvent:
		return dispatchAs[common.MarginCall](ctx, ev, r.OnMarginCall)
	case InterestChargedEvent:
		return dispatchAs[common.InterestCharged](ctx, ev, r.OnInterestCharged)
	case PatternDayTraderEvent:
		return dispatchAs[common.PatternDayTrader](ctx, ev, r.OnPatternDayTrader)
	default:
		return fmt.Errorf("unsupported event id: %d", ev.id)
	}
}
