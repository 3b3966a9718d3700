package circular

// Buffer keeps the last Capacity values pushed into it.
type Buffer[T any] struct {
	capacity int

	head int
	size int
	data []T
}

func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("capacity must > 0")
	}
	return &Buffer[T]{
		capacity: capacity,
		data:     make([]T, capacity),
	}
}

func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

func (b *Buffer[T]) Size() int {
	return b.size
}

func (b *Buffer[T]) IsFull() bool {
	return b.size == b.capacity
}

// Push appends value, overwriting the oldest one when full.
func (b *Buffer[T]) Push(value T) {
	b.data[b.head] = value
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Get returns the idx-th most recent value; Get(0) is the last one pushed.
func (b *Buffer[T]) Get(idx int) T {
	if idx < 0 || idx >= b.size {
		panic("index out of range")
	}
	return b.data[(b.head-1-idx+b.capacity)%b.capacity]
}

// Items returns a copy of the content, oldest first.
func (b *Buffer[T]) Items() []T {
	items := make([]T, b.size)
	for i := range items {
		items[i] = b.Get(b.size - 1 - i)
	}
	return items
}
