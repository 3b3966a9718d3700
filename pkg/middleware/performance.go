package middleware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
)

type HandlerStatistics struct {
	Count uint64
	Total time.Duration
}

func (s HandlerStatistics) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Performance counts the events reaching the wrapped handlers and the time spent in them.
type Performance struct {
	logger *zap.Logger

	mu    sync.Mutex
	stats map[bus.EventId]HandlerStatistics
}

func NewPerformance(logger *zap.Logger) *Performance {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Performance{
		logger: logger,
		stats:  make(map[bus.EventId]HandlerStatistics),
	}
}

func measure[T any](p *Performance, id bus.EventId, handler func(context.Context, T)) func(context.Context, T) {
	return func(ctx context.Context, ev T) {
		startTime := time.Now()
		handler(ctx, ev)
		elapsed := time.Since(startTime)

		p.mu.Lock()
		s := p.stats[id]
		s.Count++
		s.Total += elapsed
		p.stats[id] = s
		p.mu.Unlock()
	}
}

func (p *Performance) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return measure[common.Bar](p, bus.BarEvent, handler)
}

func (p *Performance) WithEquity(handler bus.EquityEventHandler) bus.EquityEventHandler {
	return measure[common.Equity](p, bus.EquityEvent, handler)
}

func (p *Performance) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return measure[common.Balance](p, bus.BalanceEvent, handler)
}

func (p *Performance) WithOrderAccepted(handler bus.OrderAcceptanceEventHandler) bus.OrderAcceptanceEventHandler {
	return measure[common.OrderAccepted](p, bus.OrderAcceptanceEvent, handler)
}

func (p *Performance) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return measure[common.OrderRejected](p, bus.OrderRejectionEvent, handler)
}

func (p *Performance) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return measure[common.OrderFilled](p, bus.OrderFilledEvent, handler)
}

func (p *Performance) WithOrderCancelled(handler bus.OrderCancelEventHandler) bus.OrderCancelEventHandler {
	return measure[common.OrderCancelled](p, bus.OrderCancelEvent, handler)
}

func (p *Performance) WithOrderExpired(handler bus.OrderExpiredEventHandler) bus.OrderExpiredEventHandler {
	return measure[common.OrderExpired](p, bus.OrderExpiredEvent, handler)
}

func (p *Performance) WithMarginCall(handler bus.MarginCallEventHandler) bus.MarginCallEventHandler {
	return measure[common.MarginCall](p, bus.MarginCallEvent, handler)
}

func (p *Performance) WithInterestCharged(handler bus.InterestChargedEventHandler) bus.InterestChargedEventHandler {
	return measure[common.InterestCharged](p, bus.InterestChargedEvent, handler)
}

func (p *Performance) WithPatternDayTrader(handler bus.PatternDayTraderEventHandler) bus.PatternDayTraderEventHandler {
	return measure[common.PatternDayTrader](p, bus.PatternDayTraderEvent, handler)
}

// Statistics returns a snapshot keyed by event.
func (p *Performance) Statistics() map[bus.EventId]HandlerStatistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[bus.EventId]HandlerStatistics, len(p.stats))
	for id, s := range p.stats {
		out[id] = s
	}
	return out
}

func (p *Performance) Print() {
	stats := p.Statistics()

	var fields []zap.Field
	for id := bus.BarEvent; id <= bus.PatternDayTraderEvent; id++ {
		s, ok := stats[id]
		if !ok || s.Count == 0 {
			continue
		}
		fields = append(fields,
			zap.Uint64(id.String()+"_count", s.Count),
			zap.Duration(id.String()+"_avg_duration", s.Average()),
			zap.Duration(id.String()+"_total_duration", s.Total))
	}

	p.logger.Info("performance statistics", fields...)
}
