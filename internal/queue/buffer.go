// Package queue provides the in-memory hand-off between the station and its
// slower consumers, such as the archive writer.
package queue

import (
	"context"
	"sync"
)

// Buffer is a thread-safe FIFO ring that doubles its capacity once it is
// 70% full. With a non-zero limit the ring stops growing at limit items and
// the oldest item is dropped to make room for each new one.
type Buffer[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   int
	count  int
	limit  int
	closed bool
	ready  chan struct{} // signalled when items arrive or on close

	// Stats
	received int64
	sent     int64
	dropped  int64
	resizes  int
}

// Stats contains buffer statistics.
type Stats struct {
	Count    int
	Capacity int
	Received int64
	Sent     int64
	Dropped  int64
	Resizes  int
}

// New creates a Buffer with the given initial capacity. A limit of zero
// means unbounded.
func New[T any](initial, limit int) *Buffer[T] {
	if initial < 1 {
		initial = 1
	}
	if limit > 0 && initial > limit {
		initial = limit
	}
	return &Buffer[T]{
		ring:  make([]T, initial),
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends item. It returns false once the buffer is closed.
func (b *Buffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := max(len(b.ring)*70/100, 1)
	if b.count+1 >= threshold && (b.limit == 0 || len(b.ring) < b.limit) {
		b.grow()
	}

	if b.count == len(b.ring) {
		// Full at the limit: overwrite the oldest.
		var zero T
		b.ring[b.head] = zero
		b.head = (b.head + 1) % len(b.ring)
		b.count--
		b.dropped++
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.received++

	b.signal()
	return true
}

// TryPop removes the oldest item without blocking.
func (b *Buffer[T]) TryPop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pop()
}

// Pop removes the oldest item, waiting until one is available. It returns
// false when ctx is done, or when the buffer is closed and empty.
func (b *Buffer[T]) Pop(ctx context.Context) (T, bool) {
	for {
		b.mu.Lock()
		item, ok := b.pop()
		closed := b.closed
		b.mu.Unlock()

		if ok || closed {
			return item, ok
		}

		select {
		case <-b.ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Drain removes up to n items (all when n <= 0) in FIFO order.
func (b *Buffer[T]) Drain(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n <= 0 || n > b.count {
		n = b.count
	}

	out := make([]T, 0, n)
	for range n {
		item, _ := b.pop()
		out = append(out, item)
	}
	return out
}

// Ready is signalled whenever items are pushed or the buffer is closed.
// Consumers must still check Len or Drain, since signals are coalesced.
func (b *Buffer[T]) Ready() <-chan struct{} {
	return b.ready
}

// Close stops accepting items. Buffered items remain poppable.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.signal()
	}
}

// Closed reports whether Close has been called.
func (b *Buffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:    b.count,
		Capacity: len(b.ring),
		Received: b.received,
		Sent:     b.sent,
		Dropped:  b.dropped,
		Resizes:  b.resizes,
	}
}

// pop must be called with the lock held.
func (b *Buffer[T]) pop() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.sent++
	return item, true
}

// grow doubles the ring, capped at the limit. Must be called with the lock held.
func (b *Buffer[T]) grow() {
	size := len(b.ring) * 2
	if b.limit > 0 && size > b.limit {
		size = b.limit
	}
	if size == len(b.ring) {
		return
	}

	ring := make([]T, size)
	n := copy(ring, b.ring[b.head:min(b.head+b.count, len(b.ring))])
	if n < b.count {
		copy(ring[n:], b.ring[:b.count-n])
	}

	b.ring = ring
	b.head = 0
	b.resizes++
}

func (b *Buffer[T]) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}
