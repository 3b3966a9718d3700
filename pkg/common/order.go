package common

import (
	"time"

	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

type OrderId = int64
type OrderType int
type TimeInForce int
type OrderClass int
type OrderStatus int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
	OrderTypeTrailingStop
)

const (
	TimeInForceDay TimeInForce = iota
	TimeInForceGoodTillCancel
	TimeInForceOnOpen
	TimeInForceOnClose
	TimeInForceImmediateOrCancel
	TimeInForceFillOrKill
)

const (
	OrderClassSimple OrderClass = iota
	OrderClassBracket
	OrderClassOneCancelsOther
	OrderClassOneTriggersOther
)

// OrderStatus has no filled state. A fully filled order stays OPEN; see Order.IsFilled.
const (
	OrderStatusOpen OrderStatus = iota
	OrderStatusCancelled
	OrderStatusExpired
	OrderStatusRejected
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStop:
		return "stop"
	case OrderTypeStopLimit:
		return "stop_limit"
	case OrderTypeTrailingStop:
		return "trailing_stop"
	default:
		return "unknown"
	}
}

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceDay:
		return "day"
	case TimeInForceGoodTillCancel:
		return "gtc"
	case TimeInForceOnOpen:
		return "opg"
	case TimeInForceOnClose:
		return "cls"
	case TimeInForceImmediateOrCancel:
		return "ioc"
	case TimeInForceFillOrKill:
		return "fok"
	default:
		return "unknown"
	}
}

func (c OrderClass) String() string {
	switch c {
	case OrderClassSimple:
		return "simple"
	case OrderClassBracket:
		return "bracket"
	case OrderClassOneCancelsOther:
		return "oco"
	case OrderClassOneTriggersOther:
		return "oto"
	default:
		return "unknown"
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "open"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusExpired:
		return "expired"
	case OrderStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OrderPlan is what a caller submits. Qty is signed, positive buys and negative sells.
type OrderPlan struct {
	Symbol        string      `json:"symbol"`
	Qty           int64       `json:"qty"`
	Type          OrderType   `json:"type"`
	TimeInForce   TimeInForce `json:"time_in_force"`
	LimitPrice    fixed.Point `json:"limit_price,omitempty"`
	StopPrice     fixed.Point `json:"stop_price,omitempty"`
	TrailPrice    fixed.Point `json:"trail_price,omitempty"`
	TrailPercent  fixed.Point `json:"trail_percent,omitempty"`
	ExtendedHours bool        `json:"extended_hours"`
	Class         OrderClass  `json:"class"`
}

type OrderStatusEntry struct {
	Status    OrderStatus `json:"status"`
	TimeStamp time.Time   `json:"ts"`
}

type Order struct {
	OrderPlan

	Id             OrderId            `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	FilledAt       time.Time          `json:"filled_at,omitempty"`
	ExpiredAt      time.Time          `json:"expired_at,omitempty"`
	CanceledAt     time.Time          `json:"canceled_at,omitempty"`
	FailedAt       time.Time          `json:"failed_at,omitempty"`
	FilledQty      int64              `json:"filled_qty"`
	FilledAvgPrice fixed.Point        `json:"filled_avg_price"`
	Status         OrderStatus        `json:"status"`
	StatusHistory  []OrderStatusEntry `json:"status_history"`
}

// IsFilled reports whether every requested share has been filled.
func (o Order) IsFilled() bool {
	return o.Qty != 0 && o.FilledQty == o.Qty
}

// Clone returns a copy that does not share the status history with o.
func (o Order) Clone() Order {
	c := o
	c.StatusHistory = append([]OrderStatusEntry(nil), o.StatusHistory...)
	return c
}

type OrderAccepted struct {
	OriginalOrder Order `json:"original_order"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderRejected struct {
	OriginalOrder Order  `json:"original_order"`
	Reason        string `json:"reason,omitempty"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

// OrderFilled is posted for every fill delta; Qty and Price describe the delta, the order
// carries the cumulative state.
type OrderFilled struct {
	OriginalOrder Order       `json:"original_order"`
	PositionId    PositionId  `json:"position_id"`
	Qty           int64       `json:"qty"`
	Price         fixed.Point `json:"price"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderCancelled struct {
	OriginalOrder Order `json:"original_order"`
	CancelledQty  int64 `json:"cancelled_qty"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

type OrderExpired struct {
	OriginalOrder Order `json:"original_order"`
	ExpiredQty    int64 `json:"expired_qty"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}
