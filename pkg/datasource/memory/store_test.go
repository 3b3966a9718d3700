package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

var base = time.Date(2023, 1, 3, 14, 30, 0, 0, time.UTC)

func bar(symbol string, minute int, price float64) common.Bar {
	c := fixed.FromFloat64(price)
	return common.Bar{
		Symbol:    symbol,
		TimeStamp: base.Add(time.Duration(minute) * time.Minute),
		Open:      c,
		High:      c,
		Low:       c,
		Close:     c,
		Volume:    fixed.FromInt(100, 0),
	}
}

func TestStore_MinuteBars(t *testing.T) {
	s := NewStore()
	s.Add(bar("SPY", 3, 3), bar("SPY", 0, 0), bar("SPY", 1, 1), bar("QQQ", 0, 10))

	bars, err := s.MinuteBars("SPY", base, base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Close.Eq(fixed.Zero))
	assert.True(t, bars[1].Close.Eq(fixed.One))
	assert.Equal(t, common.MinuteBarPeriod, bars[0].Period)

	bars, err = s.MinuteBars("SPY", base.Add(2*time.Minute), base.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, base.Add(3*time.Minute), bars[0].TimeStamp)

	bars, err = s.MinuteBars("IWM", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestStore_AddReplaces(t *testing.T) {
	s := NewStore()
	s.Add(bar("SPY", 0, 1))
	s.Add(bar("SPY", 0, 2))

	bars, err := s.MinuteBars("SPY", base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Eq(fixed.Two))
}

func TestStore_LastBar(t *testing.T) {
	s := NewStore()
	s.Add(bar("SPY", 0, 1), bar("SPY", 5, 2))

	b, err := s.LastBar("SPY", base.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, base, b.TimeStamp)

	b, err = s.LastBar("SPY", base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, base.Add(5*time.Minute), b.TimeStamp)

	_, err = s.LastBar("SPY", base.Add(-time.Second))
	assert.ErrorIs(t, err, datasource.ErrNoBar)
}

func TestComposite_Price(t *testing.T) {
	s := NewStore()
	s.Add(bar("SPY", 0, 442.7))
	src := datasource.NewComposite(s, nil, nil, datasource.WithPriceLookback(time.Hour))

	p, err := src.Price("SPY", base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, p.Eq(fixed.FromFloat64(442.7)))

	_, err = src.Price("SPY", base.Add(2*time.Hour))
	assert.ErrorIs(t, err, datasource.ErrPriceUnavailable)

	_, err = src.Price("SPY", base.Add(-time.Minute))
	assert.ErrorIs(t, err, datasource.ErrPriceUnavailable)
}
