package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/exchange/sandbox"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

func TestRunner_AppliesDueActions(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s, err := ReadScenario(strings.NewReader(minimalScenario + `
actions:
  - at: 2023-01-03T14:30:00Z
    ref: limit
    symbol: SPY
    qty: 1
    type: limit
    limit_price: "1"
    tif: gtc
  - at: 2023-01-03T14:40:00Z
    deposit: "500"
  - at: 2023-01-03T14:50:00Z
    cancel: limit
  - at: 2023-01-03T15:00:00Z
    withdraw: "200"
`))
	require.NoError(t, err)

	source, closer, err := openSource(context.Background(), logger, s)
	require.NoError(t, err)
	defer closer.Close()

	sim := sandbox.NewSimulator(logger, source, s.Start, false, sandbox.WithStartingBalance(s.StartingBalance))
	r := newRunner(logger, s.Actions)

	require.NoError(t, r.step(context.Background(), sim, s.Start))
	require.Len(t, sim.Orders(), 1)
	assert.Equal(t, 3, r.pending())

	require.NoError(t, sim.AdvanceClock(s.Start.Add(20*time.Minute)))
	require.NoError(t, r.step(context.Background(), sim, sim.Clock()))

	assert.Equal(t, 1, r.pending())
	assert.True(t, sim.Balance().Eq(fixed.FromInt(10500, 0)), "balance %s", sim.Balance())
	order, err := sim.Order(r.refs["limit"])
	require.NoError(t, err)
	assert.Equal(t, common.OrderStatusCancelled, order.Status)

	require.NoError(t, sim.AdvanceClock(s.Start.Add(90*time.Minute)))
	require.NoError(t, r.step(context.Background(), sim, sim.Clock()))
	assert.Zero(t, r.pending())
	assert.True(t, sim.Balance().Eq(fixed.FromInt(10300, 0)), "balance %s", sim.Balance())
}

func TestRun_SyntheticScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario+`
step: 5m
actions:
  - at: 2023-01-03T14:30:00Z
    symbol: SPY
    qty: 10
  - at: 2023-01-03T15:30:00Z
    symbol: SPY
    qty: -10
`), 0o644))

	require.NoError(t, run(context.Background(), zaptest.NewLogger(t), path, "", ""))
}
