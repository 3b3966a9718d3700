package middleware

// Chain composes handler decorators. The first wrapper is the outermost, so
// Chain(a, b)(h) behaves as a(b(h)).
func Chain[T any](wrappers ...func(T) T) func(T) T {
	return func(handler T) T {
		for i := len(wrappers) - 1; i >= 0; i-- {
			handler = wrappers[i](handler)
		}
		return handler
	}
}
