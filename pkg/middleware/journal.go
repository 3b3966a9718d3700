package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/wentam/simbroker/pkg/bus"
	"github.com/wentam/simbroker/pkg/common"
)

type FillRecorder interface {
	InsertFills(ctx context.Context, fills ...common.OrderFilled) error
}

// Journal persists every fill delta before passing it on. A failed insert is logged and does
// not stop the event.
type Journal struct {
	logger   *zap.Logger
	recorder FillRecorder
}

func NewJournal(logger *zap.Logger, recorder FillRecorder) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		logger:   logger,
		recorder: recorder,
	}
}

func (j *Journal) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		if err := j.recorder.InsertFills(ctx, filled); err != nil {
			j.logger.Warn("unable to record fill",
				zap.Int64("order", filled.OriginalOrder.Id),
				zap.String("symbol", filled.OriginalOrder.Symbol),
				zap.Error(err))
		}
		handler(ctx, filled)
	}
}
