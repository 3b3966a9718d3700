package synthetic

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource/calendar"
)

func TestBarGenerator_BarShape(t *testing.T) {
	g := NewBarGenerator("SPY", rand.New(rand.NewSource(42)), 380, 0.05, 0.3)
	start := time.Date(2023, 1, 3, 14, 30, 0, 0, time.UTC)

	prev := g.Next(start)
	for i := 1; i < 500; i++ {
		bar := g.Next(start.Add(time.Duration(i) * time.Minute))

		assert.Equal(t, "SPY", bar.Symbol)
		assert.Equal(t, common.MinuteBarPeriod, bar.Period)
		assert.True(t, bar.High.Gte(bar.Open) && bar.High.Gte(bar.Close), "bar %d high", i)
		assert.True(t, bar.Low.Lte(bar.Open) && bar.Low.Lte(bar.Close), "bar %d low", i)
		assert.True(t, bar.Low.IsPos(), "bar %d low", i)
		assert.True(t, bar.Volume.IsPos(), "bar %d volume", i)
		assert.True(t, bar.Open.Eq(prev.Close), "bar %d opens at the previous close", i)
		prev = bar
	}
}

func TestBarGenerator_Deterministic(t *testing.T) {
	start := time.Date(2023, 1, 3, 14, 30, 0, 0, time.UTC)
	a := NewLargeCapGenerator("SPY", rand.New(rand.NewSource(7)), 380, 0, 0.2)
	b := NewLargeCapGenerator("SPY", rand.New(rand.NewSource(7)), 380, 0, 0.2)

	for i := 0; i < 50; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		x, y := a.Next(ts), b.Next(ts)
		require.True(t, x.Close.Eq(y.Close), "bar %d", i)
		require.True(t, x.Volume.Eq(y.Volume), "bar %d", i)
	}
}

func TestBarGenerator_Sessions(t *testing.T) {
	from := time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC) // friday
	sessions := calendar.Sessions(from, from.AddDate(0, 0, 4), 14*time.Hour+30*time.Minute, 21*time.Hour)
	require.Len(t, sessions, 2)

	bars := NewPennyStockGenerator("PNY", rand.New(rand.NewSource(1)), 0.5, 0, 1.5).Sessions(sessions...)

	require.Len(t, bars, 2*390)
	assert.Equal(t, sessions[0].Open, bars[0].TimeStamp)
	assert.Equal(t, sessions[0].Close.Add(-time.Minute), bars[389].TimeStamp)
	assert.Equal(t, sessions[1].Open, bars[390].TimeStamp)
}
