package sandbox

import (
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

// applyFill adds qty shares bought (or sold, when negative) for cost to the symbol's position.
// The entry price is the cost weighted average and positions reaching zero are removed.
func (s *Simulator) applyFill(symbol string, qty int64, cost fixed.Point) common.PositionId {
	for i, p := range s.positions {
		if p.Symbol != symbol {
			continue
		}

		total := p.Qty + qty
		if total == 0 {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			return p.Id
		}

		p.AvgEntryPrice = p.AvgEntryPrice.MulInt64(p.Qty).Add(cost).DivInt64(total)
		p.Qty = total
		p.CostBasis = p.AvgEntryPrice.MulInt64(p.Qty)
		p.LastChange = qty
		p.LastChangeTime = s.clock
		return p.Id
	}

	p := &common.Position{
		Id:             s.nextPositionId,
		Symbol:         symbol,
		Qty:            qty,
		AvgEntryPrice:  cost.DivInt64(qty),
		CostBasis:      cost,
		CreatedTime:    s.clock,
		LastChange:     qty,
		LastChangeTime: s.clock,
	}
	s.nextPositionId++
	s.positions = append(s.positions, p)
	return p.Id
}

func (s *Simulator) positionQty(symbol string) int64 {
	for _, p := range s.positions {
		if p.Symbol == symbol {
			return p.Qty
		}
	}
	return 0
}

func (s *Simulator) Positions() []common.Position {
	positions := make([]common.Position, 0, len(s.positions))
	for _, p := range s.positions {
		positions = append(positions, *p)
	}
	return positions
}

func (s *Simulator) TotalCostBasis() fixed.Point {
	total := fixed.Zero
	for _, p := range s.positions {
		total = total.Add(p.CostBasis)
	}
	return total
}
