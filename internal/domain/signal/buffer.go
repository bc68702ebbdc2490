package signal

import (
	"sync"
)

// Buffer is a thread-safe fixed-capacity ring buffer of samples. When full,
// the oldest sample is evicted (drop oldest). Push never blocks; the
// producing hardware callback must not stall on a slow analyzer.
type Buffer[T any] struct {
	mu   sync.Mutex
	buf  []Sample[T]
	cap  int
	head int // index of next write position
	len  int // number of valid samples
}

// NewBuffer creates a buffer with the given capacity (in samples).
// Capacity is fixed for the life of the buffer.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{
		buf: make([]Sample[T], capacity),
		cap: capacity,
	}
}

// Push records one sample. If the buffer is full the oldest sample is
// dropped to make room.
func (b *Buffer[T]) Push(s Sample[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf[b.head] = s
	b.head = (b.head + 1) % b.cap
	if b.len < b.cap {
		b.len++
	}
}

// Snapshot returns the current contents, oldest first, as a copy that is
// safe to analyze while the producer keeps pushing.
func (b *Buffer[T]) Snapshot() []Sample[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.len == 0 {
		return nil
	}

	out := make([]Sample[T], b.len)
	start := (b.head - b.len + b.cap) % b.cap
	for i := 0; i < b.len; i++ {
		out[i] = b.buf[(start+i)%b.cap]
	}
	return out
}

// Len returns the number of samples currently held.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.len
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.cap
}

// IsFull reports whether the buffer holds Cap() samples.
func (b *Buffer[T]) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.len == b.cap
}

// Clear discards all samples, keeping the capacity.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.len = 0
}
