package sandbox

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

func TestSimulator_LimitBuySkipsUnfavourableBars(t *testing.T) {
	source := newTestSource(t, func(day, minute int) float64 {
		if minute < 10 {
			return 380
		}
		return 378
	})
	sim := NewSimulator(zaptest.NewLogger(t), source, sessionOpen(0), false, WithStartingBalance(fixed.FromInt(10000, 0)))

	id, err := sim.PlaceOrder(limitPlan("SPY", 5, 379, common.TimeInForceGoodTillCancel))
	require.NoError(t, err)

	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 9)))
	order, err := sim.Order(id)
	require.NoError(t, err)
	assert.Zero(t, order.FilledQty)

	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 15)))
	order, err = sim.Order(id)
	require.NoError(t, err)
	assert.True(t, order.IsFilled())
	assertPointEq(t, fixed.FromInt(378, 0), order.FilledAvgPrice)
	assert.Equal(t, sessionMinute(0, 11), order.FilledAt)
	assertPointEq(t, fixed.FromInt(10000-5*378, 0), sim.Balance())
}

func TestSimulator_LimitSellSkipsUnfavourableBars(t *testing.T) {
	source := newTestSource(t, func(day, minute int) float64 {
		if minute < 10 {
			return 378
		}
		return 381
	})
	sim := NewSimulator(zaptest.NewLogger(t), source, sessionOpen(0), false, WithStartingBalance(fixed.FromInt(10000, 0)))

	_, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 2)))

	id, err := sim.PlaceOrder(limitPlan("SPY", -5, 380, common.TimeInForceGoodTillCancel))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 15)))

	order, err := sim.Order(id)
	require.NoError(t, err)
	assert.True(t, order.IsFilled())
	assertPointEq(t, fixed.FromInt(381, 0), order.FilledAvgPrice)
	assert.Empty(t, sim.Positions())
	assertPointEq(t, fixed.FromInt(10000-5*378+5*381, 0), sim.Balance())
}

func TestSimulator_ExtendedHours(t *testing.T) {
	premarket := testDay.Add(9*time.Hour + 30*time.Minute)

	tests := []struct {
		name          string
		extendedHours bool
		filledAt      time.Time
		price         int
	}{
		{"extended hours fill in premarket", true, premarket.Add(time.Minute), 379},
		{"regular hours wait for the open", false, sessionMinute(0, 1), 380},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t, premarket, false, WithStartingBalance(fixed.FromInt(10000, 0)))

			plan := marketPlan("SPY", 1)
			plan.ExtendedHours = tt.extendedHours
			id, err := sim.PlaceOrder(plan)
			require.NoError(t, err)

			require.NoError(t, sim.AdvanceClock(premarket.Add(30*time.Minute)))
			order, err := sim.Order(id)
			require.NoError(t, err)
			assert.Equal(t, tt.extendedHours, order.IsFilled())

			require.NoError(t, sim.AdvanceClock(sessionMinute(0, 30)))
			order, err = sim.Order(id)
			require.NoError(t, err)
			assert.True(t, order.IsFilled())
			assert.Equal(t, tt.filledAt, order.FilledAt)
			assertPointEq(t, fixed.FromInt(tt.price, 0), order.FilledAvgPrice)
		})
	}
}

func TestSimulator_NoFillWhileClosed(t *testing.T) {
	sim := newTestSimulator(t, testDay.Add(2*time.Hour), false, WithStartingBalance(fixed.FromInt(10000, 0)))

	plan := marketPlan("SPY", 1)
	plan.ExtendedHours = true
	id, err := sim.PlaceOrder(plan)
	require.NoError(t, err)

	require.NoError(t, sim.AdvanceClock(testDay.Add(9*time.Hour)))
	order, err := sim.Order(id)
	require.NoError(t, err)
	assert.Zero(t, order.FilledQty)

	require.NoError(t, sim.AdvanceClock(testDay.Add(9*time.Hour+time.Minute)))
	order, err = sim.Order(id)
	require.NoError(t, err)
	assert.True(t, order.IsFilled())
}

func TestSimulator_InstaFill(t *testing.T) {
	now := sessionMinute(0, 30).Add(30 * time.Second)
	sim := newTestSimulator(t, now, false, WithStartingBalance(fixed.FromInt(10000, 0)), WithInstaFill(true))

	id, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)

	order, err := sim.Order(id)
	require.NoError(t, err)
	assert.True(t, order.IsFilled())
	assert.Equal(t, now, order.FilledAt)
	assert.Equal(t, now, sim.Clock())
	assertPointEq(t, fixed.FromInt(10000-5*380, 0), sim.Balance())
}

func TestSimulator_VolumeFillRate(t *testing.T) {
	source := newTestSource(t, func(day, minute int) float64 { return 380 + float64(minute) })
	sim := NewSimulator(zaptest.NewLogger(t), source, sessionOpen(0), false,
		WithStartingBalance(fixed.FromInt(10000, 0)), WithFillRateEstimator(VolumeFillRate))

	id, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)

	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 3)))
	order, err := sim.Order(id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), order.FilledQty)
	assert.False(t, order.IsFilled())
	assert.True(t, order.FilledAt.IsZero())
	assertPointEq(t, fixed.FromInt(381, 0), order.FilledAvgPrice)
	assertPointEq(t, fixed.FromInt(10000-3*381, 0), sim.Balance())

	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 10)))
	order, err = sim.Order(id)
	require.NoError(t, err)
	assert.True(t, order.IsFilled())
	assert.Equal(t, sessionMinute(0, 5), order.FilledAt)
	assertPointEq(t, fixed.FromInt(382, 0), order.FilledAvgPrice)
	assertPointEq(t, fixed.FromInt(10000-3*381-2*382, 0), sim.Balance())

	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, int64(5), positions[0].Qty)
	assertPointEq(t, fixed.FromFloat64(381.4), positions[0].AvgEntryPrice)
	assertPointEq(t, fixed.FromInt(3*381+2*382, 0), positions[0].CostBasis)
}

func TestSimulator_CancelKeepsPartialFill(t *testing.T) {
	sim := newTestSimulator(t, sessionOpen(0), false,
		WithStartingBalance(fixed.FromInt(10000, 0)), WithFillRateEstimator(VolumeFillRate))

	id, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 3)))
	require.NoError(t, sim.CancelOrder(id))
	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 10)))

	order, err := sim.Order(id)
	require.NoError(t, err)
	assert.Equal(t, common.OrderStatusCancelled, order.Status)
	assert.Equal(t, int64(3), order.FilledQty)
	assert.Equal(t, int64(3), sim.positionQty("SPY"))
	assertPointEq(t, fixed.FromInt(10000-3*380, 0), sim.Balance())
}

func TestSimulator_DataGap(t *testing.T) {
	source := newTestSource(t, flatPrice, testBar("SPY", sessionMinute(0, 1), 0))
	sim := NewSimulator(zaptest.NewLogger(t), source, sessionOpen(0), false, WithStartingBalance(fixed.FromInt(10000, 0)))

	_, err := sim.PlaceOrder(limitPlan("SPY", 5, 1, common.TimeInForceGoodTillCancel))
	require.NoError(t, err)

	err = sim.AdvanceClock(sessionMinute(0, 10))
	assert.ErrorIs(t, err, ErrDataGap)
}

func TestSimulator_TradableTime(t *testing.T) {
	hourBar := func(ts time.Time) common.Bar {
		return common.Bar{Symbol: "SPY", TimeStamp: ts, Period: time.Hour}
	}
	at := func(hour, minute int) time.Time {
		return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}

	tests := []struct {
		name          string
		clock         time.Time
		createdAt     time.Time
		extendedHours bool
		instaFill     bool
		bar           common.Bar
		next          time.Time
		expected      time.Duration
	}{
		{"regular hours from the open", at(16, 0), at(8, 0), false, false, hourBar(at(14, 0)), time.Time{}, 30 * time.Minute},
		{"extended hours whole bar", at(16, 0), at(8, 0), true, false, hourBar(at(14, 0)), time.Time{}, time.Hour},
		{"closed before premarket", at(16, 0), at(8, 0), true, false, hourBar(at(8, 30)), time.Time{}, 30 * time.Minute},
		{"created inside the bar", at(16, 0), at(14, 10), true, false, hourBar(at(14, 0)), time.Time{}, 50 * time.Minute},
		{"clock inside the bar", at(14, 45), at(8, 0), false, false, hourBar(at(14, 0)), time.Time{}, 15 * time.Minute},
		{"next status change inside the bar", at(16, 0), at(8, 0), false, false, hourBar(at(14, 0)), at(14, 40), 10 * time.Minute},
		{"insta fill ignores clock and creation", at(14, 45), at(14, 50), false, true, hourBar(at(14, 0)), time.Time{}, 30 * time.Minute},
		{"outside the calendar", at(16, 0), at(-5, 0), true, false, hourBar(at(-4, 0)), time.Time{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t, tt.clock, false, WithInstaFill(tt.instaFill))
			order := common.Order{OrderPlan: marketPlan("SPY", 1), CreatedAt: tt.createdAt}
			order.ExtendedHours = tt.extendedHours

			tradable, err := sim.tradableTime(order, tt.bar, tt.next)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, tradable)
		})
	}
}

func TestUnfavourableOpen(t *testing.T) {
	bar := common.Bar{Open: fixed.FromInt(100, 0)}

	tests := []struct {
		name     string
		qty      int64
		limit    int
		expected bool
	}{
		{"buy below open", 1, 99, true},
		{"buy at open", 1, 100, false},
		{"buy above open", 1, 101, false},
		{"sell above open", -1, 101, true},
		{"sell at open", -1, 100, false},
		{"sell below open", -1, 99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := common.Order{OrderPlan: common.OrderPlan{Qty: tt.qty, LimitPrice: fixed.FromInt(tt.limit, 0)}}
			assert.Equal(t, tt.expected, unfavourableOpen(order, bar))
		})
	}
}

func TestVolumeFillRate(t *testing.T) {
	bar := common.Bar{Period: time.Minute, Volume: fixed.FromInt(120, 0)}

	assert.Equal(t, int64(120), VolumeFillRate(bar, time.Minute))
	assert.Equal(t, int64(60), VolumeFillRate(bar, 30*time.Second))
	assert.Equal(t, int64(0), VolumeFillRate(bar, 0))
	assert.Equal(t, int64(0), VolumeFillRate(common.Bar{Volume: fixed.One}, time.Minute))
	assert.Equal(t, int64(math.MaxInt64), UnboundedFillRate(bar, time.Second))
}

func TestSaturatingAdd(t *testing.T) {
	assert.Equal(t, int64(5), saturatingAdd(2, 3))
	assert.Equal(t, int64(math.MaxInt64), saturatingAdd(1, math.MaxInt64))
	assert.Equal(t, int64(math.MaxInt64), saturatingAdd(math.MaxInt64, math.MaxInt64))
}

func TestFillEnd(t *testing.T) {
	bar := common.Bar{TimeStamp: sessionOpen(0), Period: time.Minute}

	assert.Equal(t, sessionMinute(0, 1), fillEnd(bar, sessionMinute(0, 5), time.Time{}))
	assert.Equal(t, sessionOpen(0).Add(20*time.Second), fillEnd(bar, sessionOpen(0).Add(20*time.Second), time.Time{}))
	assert.Equal(t, sessionOpen(0).Add(10*time.Second), fillEnd(bar, sessionMinute(0, 5), sessionOpen(0).Add(10*time.Second)))
}
