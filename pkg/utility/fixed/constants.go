package fixed

var (
	NegOne  = FromInt64(-1, 0)
	Zero    = FromInt64(0, 0)
	One     = FromInt64(1, 0)
	Two     = FromInt64(2, 0)
	Hundred = FromInt64(100, 0)

	Sqrt252 = FromInt64(252, 0).Sqrt()
)
