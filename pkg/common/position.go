package common

import (
	"time"

	"github.com/wentam/simbroker/pkg/utility/fixed"
)

type PositionId = int64

// Position is the net holding in one symbol. Qty is negative for shorts.
type Position struct {
	Id             PositionId  `json:"id"`
	Symbol         string      `json:"symbol"`
	Qty            int64       `json:"qty"`
	AvgEntryPrice  fixed.Point `json:"avg_entry_price"`
	CostBasis      fixed.Point `json:"cost_basis"`
	CreatedTime    time.Time   `json:"created_time"`
	LastChange     int64       `json:"last_change"`
	LastChangeTime time.Time   `json:"last_change_time"`
}

func (p Position) IsLong() bool  { return p.Qty > 0 }
func (p Position) IsShort() bool { return p.Qty < 0 }
