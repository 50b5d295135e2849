// Package ring provides a fixed-capacity lossy buffer with independent
// consumer cursors. Producers never block: once the buffer is full, each push
// overwrites the oldest retained entry. Every cursor drains its own view of
// the stream, so multiple consumers can share one buffer without stealing
// entries from each other.
package ring

import "sync"

// Buffer is a bounded, lossy, multi-producer ring buffer. Memory use never
// exceeds capacity entries. The zero value is not usable; call New.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	cap   int
	// head is the absolute sequence number of the next entry to be written.
	// Retained entries cover [head-len(items), head).
	head uint64
}

// New creates a Buffer retaining at most capacity entries. New panics when
// capacity is not positive; the capacity is a compile-time constant in every
// caller.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Push appends v, silently dropping the oldest retained entry when the buffer
// is full. Push never blocks.
func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) < b.cap {
		b.items = append(b.items, v)
	} else {
		b.items[b.head%uint64(b.cap)] = v
	}
	b.head++
}

// Cursor returns a new independent consumer positioned at the current head:
// it observes entries pushed after its creation.
func (b *Buffer[T]) Cursor() *Cursor[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Cursor[T]{buf: b, next: b.head}
}

// Cursor is an independent read position over a Buffer. Cursors are safe for
// concurrent use, but two goroutines draining the same cursor split the
// stream between them.
type Cursor[T any] struct {
	buf *Buffer[T]
	// next is the absolute sequence number of the next entry to read.
	next uint64
}

// Drain returns every entry between the cursor position and the current head
// in push order and advances the cursor past them. It never blocks: an empty
// buffer yields an empty slice. A cursor that fell behind an overwrite
// resumes at the oldest retained entry.
func (c *Cursor[T]) Drain() []T {
	b := c.buf

	b.mu.Lock()
	defer b.mu.Unlock()

	oldest := b.head - uint64(len(b.items))
	if c.next < oldest {
		c.next = oldest
	}

	out := make([]T, 0, b.head-c.next)
	for seq := c.next; seq < b.head; seq++ {
		out = append(out, b.items[seq%uint64(b.cap)])
	}
	c.next = b.head

	return out
}
