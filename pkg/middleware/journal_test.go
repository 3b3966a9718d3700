package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wentam/simbroker/pkg/common"
)

type fakeRecorder struct {
	fills []common.OrderFilled
	err   error
}

func (r *fakeRecorder) InsertFills(_ context.Context, fills ...common.OrderFilled) error {
	if r.err != nil {
		return r.err
	}
	r.fills = append(r.fills, fills...)
	return nil
}

func TestJournal_RecordsFills(t *testing.T) {
	recorder := &fakeRecorder{}
	j := NewJournal(nil, recorder)

	var passed int
	handler := j.WithOrderFilled(func(context.Context, common.OrderFilled) { passed++ })
	handler(context.Background(), common.OrderFilled{OriginalOrder: testOrder(), Qty: 4})
	handler(context.Background(), common.OrderFilled{OriginalOrder: testOrder(), Qty: 6})

	assert.Equal(t, 2, passed)
	require.Len(t, recorder.fills, 2)
	assert.Equal(t, int64(4), recorder.fills[0].Qty)
	assert.Equal(t, int64(6), recorder.fills[1].Qty)
}

func TestJournal_InsertFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	j := NewJournal(zap.New(core), &fakeRecorder{err: errors.New("database is locked")})

	var passed bool
	j.WithOrderFilled(func(context.Context, common.OrderFilled) { passed = true })(
		context.Background(), common.OrderFilled{OriginalOrder: testOrder()})

	assert.True(t, passed)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "unable to record fill", logs.All()[0].Message)
	assert.Equal(t, int64(7), logs.All()[0].ContextMap()["order"])
}
