package fixed

import (
	"testing"
)

func createPoints(values ...float64) []Point {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = FromFloat64(v)
	}
	return points
}

func assertPointEqual(t *testing.T, expected, actual Point, tolerance float64, msg string) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	if diff.Gt(FromFloat64(tolerance)) {
		t.Errorf("%s: expected %v, got %v (diff: %v)", msg, expected, actual, diff)
	}
}

func TestFixedMath_Mean(t *testing.T) {
	tests := []struct {
		name     string
		points   []Point
		expected Point
	}{
		{"empty slice", nil, Zero},
		{"single point", createPoints(5.0), FromFloat64(5.0)},
		{"multiple points", createPoints(1, 2, 3, 4), FromFloat64(2.5)},
		{"negative points", createPoints(-1, -3), FromFloat64(-2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertPointEqual(t, tt.expected, Mean(tt.points), 1e-9, "Mean")
		})
	}
}

func TestFixedMath_StdDev(t *testing.T) {
	points := createPoints(2, 4, 4, 4, 5, 5, 7, 9)
	assertPointEqual(t, FromFloat64(2), StdDev(points, Mean(points)), 1e-9, "StdDev")
	assertPointEqual(t, Zero, StdDev(createPoints(1), One), 0, "StdDev of single point")
}

func TestFixedMath_DownsideDev(t *testing.T) {
	assertPointEqual(t, Zero, DownsideDev(createPoints(1, 2, 3), Zero), 0, "no downside")
	assertPointEqual(t, Zero, DownsideDev(createPoints(-1, 2, 3), Zero), 0, "single downside")
	assertPointEqual(t, FromFloat64(2.7386127875258306), DownsideDev(createPoints(-1, -2, -3, -4), Zero), 1e-9, "all downside")
}

func TestFixedMath_Ratios(t *testing.T) {
	returns := createPoints(0.01, -0.02, 0.03, -0.01, 0.02)

	sharpe := SharpeRatio(returns, Zero)
	if !sharpe.IsPos() {
		t.Errorf("SharpeRatio() = %s; want positive", sharpe)
	}
	sortino := SortinoRatio(returns, Zero)
	if !sortino.IsPos() {
		t.Errorf("SortinoRatio() = %s; want positive", sortino)
	}

	if !SharpeRatio(createPoints(0.01, 0.01), Zero).IsZero() {
		t.Errorf("SharpeRatio() with zero volatility should be zero")
	}
	if !SortinoRatio(nil, Zero).IsZero() {
		t.Errorf("SortinoRatio() of empty slice should be zero")
	}
}
