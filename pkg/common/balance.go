package common

import (
	"time"

	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

type Balance struct {
	Source      string              `json:"src,omitempty"`
	Account     string              `json:"account,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts,omitempty"`
	Value       fixed.Point         `json:"value"`
}

type Equity struct {
	Source      string              `json:"src,omitempty"`
	Account     string              `json:"account,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts,omitempty"`
	Value       fixed.Point         `json:"value"`
}

type MarginCall struct {
	Equity      fixed.Point `json:"equity"`
	Loan        fixed.Point `json:"loan"`
	Requirement fixed.Point `json:"requirement"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts,omitempty"`
}

// InterestCharged is posted once per market close; Interest covers the margin loan and
// BorrowFee the short positions.
type InterestCharged struct {
	Interest  fixed.Point `json:"interest"`
	BorrowFee fixed.Point `json:"borrow_fee"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts,omitempty"`
}

type PatternDayTrader struct {
	DayTrades int `json:"day_trades"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts,omitempty"`
}
