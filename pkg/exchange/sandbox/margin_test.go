package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

func TestSimulator_BuyingPower(t *testing.T) {
	tests := []struct {
		name     string
		margin   bool
		expected int
	}{
		{"cash account", false, 1000},
		{"margin account", true, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t, sessionOpen(0), tt.margin, WithStartingBalance(fixed.FromInt(1000, 0)))

			buyingPower, err := sim.BuyingPower()

			require.NoError(t, err)
			assertPointEq(t, fixed.FromInt(tt.expected, 0), buyingPower)
		})
	}
}

func TestSimulator_BuyingPowerWithInitialMarginRequirement(t *testing.T) {
	sim := newTestSimulator(t, sessionOpen(0), true,
		WithStartingBalance(fixed.FromInt(1000, 0)),
		WithInitialMarginRequirement(fixed.FromFloat64(0.25)))

	buyingPower, err := sim.BuyingPower()

	require.NoError(t, err)
	assertPointEq(t, fixed.FromInt(4000, 0), buyingPower)
}

func TestSimulator_EquityFallsBackToEntryPrice(t *testing.T) {
	sim := newTestSimulator(t, sessionOpen(0), false, WithStartingBalance(fixed.FromInt(1000, 0)))

	sim.applyFill("NOPX", 2, fixed.FromInt(20, 0))

	equity, err := sim.Equity()
	require.NoError(t, err)
	assertPointEq(t, fixed.FromInt(1020, 0), equity)
}

func TestSimulator_InterestOnMarginLoan(t *testing.T) {
	router := bus.NewRouter(zaptest.NewLogger(t), 64)
	var charges []common.InterestCharged
	router.OnInterestCharged = func(_ context.Context, ev common.InterestCharged) { charges = append(charges, ev) }

	sim := newTestSimulator(t, sessionOpen(0), true, WithStartingBalance(fixed.FromInt(1000, 0)), WithRouter(router))

	_, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 5)))

	assertPointEq(t, fixed.FromInt(-900, 0), sim.Balance())
	loan, err := sim.Loan()
	require.NoError(t, err)
	assertPointEq(t, fixed.FromInt(900, 0), loan)

	require.NoError(t, sim.AdvanceClock(sessionClose(0).Add(5*time.Hour)))

	interest := fixed.FromInt(900, 0).Mul(fixed.FromFloat64(0.0375)).DivInt(360)
	assertPointEq(t, fixed.FromInt(-900, 0).Sub(interest), sim.Balance())

	router.Drain(context.Background())
	require.Len(t, charges, 1)
	assertPointEq(t, interest, charges[0].Interest)
	assert.True(t, charges[0].BorrowFee.IsZero())
	assert.Equal(t, sessionClose(0).Add(4*time.Hour), charges[0].TimeStamp)
}

func TestSimulator_InterestAccruesOncePerClose(t *testing.T) {
	sim := newTestSimulator(t, sessionOpen(0), true, WithStartingBalance(fixed.FromInt(1000, 0)))

	_, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(2, 0)))

	daily := fixed.FromInt(900, 0).Mul(fixed.FromFloat64(0.0375)).DivInt(360)
	first := fixed.FromInt(-900, 0).Sub(daily)
	second := first.Sub(first.Abs().Mul(fixed.FromFloat64(0.0375)).DivInt(360))
	assertPointEq(t, second, sim.Balance())
}

func TestSimulator_NoInterestWithoutMargin(t *testing.T) {
	sim := newTestSimulator(t, sessionOpen(0), false, WithStartingBalance(fixed.FromInt(1000, 0)))

	_, err := sim.PlaceOrder(marketPlan("SPY", 2))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(3, 0)))

	assertPointEq(t, fixed.FromInt(1000-2*380, 0), sim.Balance())
}

func TestSimulator_ShortBorrowFee(t *testing.T) {
	tests := []struct {
		name     string
		roundLot bool
		feeQty   int64
	}{
		{"round lot", true, 100},
		{"exact quantity", false, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t, sessionOpen(0), true,
				WithStartingBalance(fixed.FromInt(10000, 0)), WithShortRoundLotFee(tt.roundLot))

			_, err := sim.PlaceOrder(marketPlan("SPY", -5))
			require.NoError(t, err)
			require.NoError(t, sim.AdvanceClock(sessionMinute(0, 5)))

			assertPointEq(t, fixed.FromInt(11900, 0), sim.Balance())
			loan, err := sim.Loan()
			require.NoError(t, err)
			assertPointEq(t, fixed.FromInt(1900, 0), loan)

			require.NoError(t, sim.AdvanceClock(sessionClose(0).Add(5*time.Hour)))

			fee := fixed.FromInt(380, 0).MulInt64(tt.feeQty).Mul(fixed.FromFloat64(0.01)).DivInt(360)
			assertPointEq(t, fixed.FromInt(11900, 0).Sub(fee), sim.Balance())
		})
	}
}

func TestRoundUpToLot(t *testing.T) {
	tests := []struct {
		qty      int64
		expected int64
	}{
		{0, 0},
		{1, 100},
		{5, 100},
		{100, 100},
		{101, 200},
		{110, 200},
		{250, 300},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, roundUpToLot(tt.qty), "qty %d", tt.qty)
	}
}

func TestSimulator_MarginCall(t *testing.T) {
	router := bus.NewRouter(zaptest.NewLogger(t), 64)
	var events []common.MarginCall
	router.OnMarginCall = func(_ context.Context, ev common.MarginCall) { events = append(events, ev) }

	source := newTestSource(t, func(day, minute int) float64 {
		if day == 0 {
			return 380
		}
		return 100
	})

	var calls int
	sim := NewSimulator(zaptest.NewLogger(t), source, sessionOpen(0), true,
		WithStartingBalance(fixed.FromInt(1000, 0)),
		WithRouter(router),
		WithMarginCallHandler(func() { calls++ }))

	_, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(0, 5)))

	call, err := sim.CheckForMarginCall()
	require.NoError(t, err)
	assert.False(t, call)
	assert.Zero(t, calls)

	require.NoError(t, sim.AdvanceClock(sessionMinute(1, 5)))

	call, err = sim.CheckForMarginCall()
	require.NoError(t, err)
	assert.True(t, call)
	assert.Equal(t, 1, calls)

	router.Drain(context.Background())
	require.Len(t, events, 1)
	assertPointEq(t, fixed.FromFloat64(0.35), events[0].Requirement)
	assert.True(t, events[0].Equity.IsNeg())
	assert.Equal(t, sessionMinute(1, 5), events[0].TimeStamp)

	equity, err := sim.Equity()
	require.NoError(t, err)
	loan, err := sim.Loan()
	require.NoError(t, err)
	assertPointEq(t, equity, events[0].Equity)
	assertPointEq(t, loan, events[0].Loan)
	assert.True(t, events[0].Loan.IsPos())
}

func TestSimulator_SetMarginCallHandler(t *testing.T) {
	source := newTestSource(t, func(day, minute int) float64 {
		if day == 0 {
			return 380
		}
		return 100
	})
	sim := NewSimulator(zaptest.NewLogger(t), source, sessionOpen(0), true, WithStartingBalance(fixed.FromInt(1000, 0)))

	var calls int
	sim.SetMarginCallHandler(func() { calls++ })

	_, err := sim.PlaceOrder(marketPlan("SPY", 5))
	require.NoError(t, err)
	require.NoError(t, sim.AdvanceClock(sessionMinute(1, 5)))

	assert.Equal(t, 1, calls)
}

func TestSimulator_NoMarginCallWithoutMargin(t *testing.T) {
	sim := newTestSimulator(t, sessionOpen(0), false, WithStartingBalance(fixed.FromInt(1000, 0)))

	call, err := sim.CheckForMarginCall()

	require.NoError(t, err)
	assert.False(t, call)
}
