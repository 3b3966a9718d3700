package common

import (
	"time"

	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

const MinuteBarPeriod = time.Minute

// Bar is an OHLCV aggregate over [TimeStamp, TimeStamp+Period).
type Bar struct {
	Source      string              `json:"src,omitempty"`
	Symbol      string              `json:"symbol,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
	Period      time.Duration       `json:"period"`
	Open        fixed.Point         `json:"open"`
	High        fixed.Point         `json:"high"`
	Low         fixed.Point         `json:"low"`
	Close       fixed.Point         `json:"close"`
	Volume      fixed.Point         `json:"volume"`
}

func (b Bar) End() time.Time {
	return b.TimeStamp.Add(b.Period)
}

// Covers reports whether t falls inside the bar period.
func (b Bar) Covers(t time.Time) bool {
	return !t.Before(b.TimeStamp) && t.Before(b.End())
}
