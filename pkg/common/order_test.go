package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrder_IsFilled(t *testing.T) {
	tests := []struct {
		name      string
		qty       int64
		filledQty int64
		want      bool
	}{
		{"unfilled buy", 5, 0, false},
		{"partial buy", 5, 3, false},
		{"full buy", 5, 5, true},
		{"full sell", -5, -5, true},
		{"partial sell", -5, -1, false},
		{"zero qty", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{OrderPlan: OrderPlan{Qty: tt.qty}, FilledQty: tt.filledQty}
			assert.Equal(t, tt.want, o.IsFilled())
		})
	}
}

func TestOrder_Clone(t *testing.T) {
	o := Order{StatusHistory: []OrderStatusEntry{{Status: OrderStatusOpen, TimeStamp: time.Unix(0, 0)}}}
	c := o.Clone()
	c.StatusHistory[0].Status = OrderStatusRejected

	assert.Equal(t, OrderStatusOpen, o.StatusHistory[0].Status)
}

func TestBar_Covers(t *testing.T) {
	start := time.Date(2023, 1, 3, 14, 30, 0, 0, time.UTC)
	b := Bar{TimeStamp: start, Period: MinuteBarPeriod}

	assert.True(t, b.Covers(start))
	assert.True(t, b.Covers(start.Add(59*time.Second)))
	assert.False(t, b.Covers(start.Add(time.Minute)))
	assert.False(t, b.Covers(start.Add(-time.Second)))
}

func TestEnums_String(t *testing.T) {
	assert.Equal(t, "open", MarketPhaseOpen.String())
	assert.Equal(t, "limit", OrderTypeLimit.String())
	assert.Equal(t, "gtc", TimeInForceGoodTillCancel.String())
	assert.Equal(t, "bracket", OrderClassBracket.String())
	assert.Equal(t, "rejected", OrderStatusRejected.String())
	assert.True(t, MarketPhasePostMarket.Extended())
	assert.False(t, MarketPhaseOpen.Extended())
}
