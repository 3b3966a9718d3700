package sandbox

import (
	"errors"
	"fmt"
)

var (
	ErrTimeTravel  = errors.New("clock cannot move backwards")
	ErrUnsupported = errors.New("unsupported")

	ErrUnsupportedOrderType   = fmt.Errorf("order type %w", ErrUnsupported)
	ErrUnsupportedTimeInForce = fmt.Errorf("time in force %w", ErrUnsupported)
	ErrUnsupportedOrderClass  = fmt.Errorf("order class %w", ErrUnsupported)

	ErrOrderNotFound = errors.New("order not found")
	ErrOrderNotOpen  = errors.New("order not open")
	ErrDataGap       = errors.New("gap in bar data")
)
