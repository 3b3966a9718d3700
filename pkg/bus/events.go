package bus

type EventId uint8

const (
	BarEvent EventId = iota
	EquityEvent
	BalanceEvent
	OrderAcceptanceEvent
	OrderRejectionEvent
	OrderFilledEvent
	OrderCancelEvent
	OrderExpiredEvent
	MarginCallEvent
	InterestChargedEvent
	PatternDayTraderEvent
)

func (id EventId) String() string {
	switch id {
	case BarEvent:
		return "bar"
	case EquityEvent:
		return "equity"
	case BalanceEvent:
		return "balance"
	case OrderAcceptanceEvent:
		return "order_accepted"
	case OrderRejectionEvent:
		return "order_rejected"
	case OrderFilledEvent:
		return "order_filled"
	case OrderCancelEvent:
		return "order_cancelled"
	case OrderExpiredEvent:
		return "order_expired"
	case MarginCallEvent:
		return "margin_call"
	case InterestChargedEvent:
		return "interest_charged"
	case PatternDayTraderEvent:
		return "pattern_day_trader"
	default:
		return "unknown"
	}
}
