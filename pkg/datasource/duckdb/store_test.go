package duckdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/datasource/calendar"
	"github.com/wentam/simbroker/pkg/utility"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

var open = time.Date(2023, 1, 3, 14, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBar(minute int, price float64) common.Bar {
	c := fixed.FromFloat64(price)
	return common.Bar{
		Symbol:    "SPY",
		TimeStamp: open.Add(time.Duration(minute) * time.Minute),
		Open:      c,
		High:      c,
		Low:       c,
		Close:     c,
		Volume:    fixed.FromInt(10, 0),
	}
}

func TestStore_Bars(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.InsertBars(ctx, testBar(0, 380), testBar(1, 381), testBar(5, 385.25)))

	bars, err := s.MinuteBars("SPY", open, open.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, open, bars[0].TimeStamp)
	assert.True(t, bars[1].Close.Eq(fixed.FromInt(381, 0)))
	assert.Equal(t, "SPY", bars[1].Symbol)

	bar, err := s.LastBar("SPY", open.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, bar.Close.Eq(fixed.FromFloat64(385.25)))

	_, err = s.LastBar("SPY", open.Add(-time.Minute))
	assert.ErrorIs(t, err, datasource.ErrNoBar)
}

func TestStore_DataSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.InsertBars(ctx, testBar(0, 380)))
	require.NoError(t, s.InsertSessions(ctx, calendar.Session{Open: open, Close: open.Add(390 * time.Minute)}))
	require.NoError(t, s.InsertAssets(ctx, datasource.Asset{Symbol: "SPY", Marginable: true, Shortable: true, EasyToBorrow: true, BorrowRate: fixed.FromFloat64(0.01)}))

	src, err := s.DataSource(ctx)
	require.NoError(t, err)

	phase, err := src.MarketPhase(open.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, common.MarketPhaseOpen, phase)

	price, err := src.Price("SPY", open.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, price.Eq(fixed.FromInt(380, 0)))

	ok, err := src.IsMarginable("SPY", open)
	require.NoError(t, err)
	assert.True(t, ok)

	rate, err := src.BorrowRate("SPY", open)
	require.NoError(t, err)
	assert.True(t, rate.Eq(fixed.FromFloat64(0.01)))
}

func TestStore_Fills(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	eid := utility.GetExecutionID()
	other := utility.NewExecution()

	fill := func(order common.OrderId, qty int64, price float64, minute int, execution utility.ExecutionID) common.OrderFilled {
		f := common.OrderFilled{
			PositionId:  7,
			Qty:         qty,
			Price:       fixed.FromFloat64(price),
			ExecutionId: execution,
			TimeStamp:   open.Add(time.Duration(minute) * time.Minute),
		}
		f.OriginalOrder.Id = order
		f.OriginalOrder.Symbol = "SPY"
		return f
	}

	require.NoError(t, s.InsertFills(ctx,
		fill(0, 5, 380.5, 1, eid),
		fill(1, -5, 381, 2, eid),
		fill(0, 1, 1, 1, other)))

	fills, err := s.Fills(ctx, eid)
	require.NoError(t, err)
	require.Len(t, fills, 2)

	assert.Equal(t, common.OrderId(0), fills[0].OriginalOrder.Id)
	assert.Equal(t, "SPY", fills[0].OriginalOrder.Symbol)
	assert.Equal(t, common.PositionId(7), fills[0].PositionId)
	assert.Equal(t, int64(5), fills[0].Qty)
	assert.True(t, fills[0].Price.Eq(fixed.FromFloat64(380.5)))
	assert.Equal(t, open.Add(time.Minute), fills[0].TimeStamp)
	assert.Equal(t, eid, fills[0].ExecutionId)
	assert.Equal(t, int64(-5), fills[1].Qty)

	fills, err = s.Fills(ctx, other)
	require.NoError(t, err)
	assert.Len(t, fills, 1)
}
