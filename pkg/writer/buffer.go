package writer

import (
	"errors"
	"sync"

	"github.com/vjranagit/tickstats/pkg/types"
)

var (
	// ErrBufferFull is returned when the buffer is at capacity
	ErrBufferFull = errors.New("write buffer is full")
	// ErrBufferClosed is returned by Push after Close
	ErrBufferClosed = errors.New("write buffer is closed")
)

// Buffer is a bounded FIFO of measurements shared between producers and
// the flush actor. Drain swaps the backing slice under the lock, so an entry
// pushed concurrently with a drain lands in exactly one batch.
type Buffer struct {
	mu       sync.Mutex
	items    []types.Measurement
	capacity int
	closed   bool
}

// NewBuffer creates a buffer holding at most capacity measurements.
// A capacity <= 0 means unbounded.
func NewBuffer(capacity int) *Buffer {
	initial := capacity
	if initial <= 0 || initial > 1024 {
		initial = 1024
	}
	return &Buffer{
		items:    make([]types.Measurement, 0, initial),
		capacity: capacity,
	}
}

// Push appends a measurement. It never blocks beyond the buffer lock.
func (b *Buffer) Push(m types.Measurement) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	if b.capacity > 0 && len(b.items) >= b.capacity {
		return ErrBufferFull
	}
	b.items = append(b.items, m)
	return nil
}

// Drain takes ownership of everything queued so far, in FIFO order.
// Returns nil if the buffer is empty.
func (b *Buffer) Drain() []types.Measurement {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return nil
	}

	drained := b.items
	b.items = make([]types.Measurement, 0, cap(drained))
	return drained
}

// Close rejects further pushes. Entries already queued stay drainable, so
// a Drain after Close sees every accepted measurement.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Len returns the number of queued measurements
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Cap returns the configured capacity
func (b *Buffer) Cap() int {
	return b.capacity
}

// collapse keeps only the newest measurement of each series. Survivors keep
// their relative FIFO order.
func collapse(batch []types.Measurement) []types.Measurement {
	seen := make(map[string]struct{}, len(batch))
	kept := make([]types.Measurement, 0, len(batch))

	for i := len(batch) - 1; i >= 0; i-- {
		key := batch[i].Series().Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, batch[i])
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
