package buffer

import (
	"sync"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
)

// OverflowPolicy decides what happens to writes once the buffer is full.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest buffered item to make room.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming item and keeps the buffer as is.
	DropNewest
)

// String returns a human-readable policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback receives items discarded by the overflow policy.
type DropCallback[T any] func(item T)

// Ring is a fixed-capacity circular buffer. All methods are safe for
// concurrent use.
type Ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write slot
	tail     int // next read slot
	closed   bool

	stats   *Statistics
	metrics *ringMetrics
	opts    *ringOptions[T]
}

// NewRing creates a ring buffer holding at most capacity items.
// Returns an error only when metrics registration fails.
func NewRing[T any](capacity int, options ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}
	opts := applyOptions(options...)

	var metrics *ringMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newRingMetrics(opts.metricsReg, opts.metricsComponent)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "NewRing", "metrics registration failed")
		}
	}

	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write adds an item, applying the overflow policy when full.
func (r *Ring[T]) Write(item T) error {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrShuttingDown, "buffer", "Write", "buffer closed")
	}

	var dropped T
	var haveDrop bool

	if r.size == r.capacity {
		r.stats.Overflow()
		if r.metrics != nil {
			r.metrics.recordOverflow()
		}

		switch r.opts.overflowPolicy {
		case DropNewest:
			r.stats.Drop()
			if r.metrics != nil {
				r.metrics.recordDrop()
			}
			cb := r.opts.dropCallback
			r.mu.Unlock()
			if cb != nil {
				cb(item)
			}
			return nil

		default: // DropOldest
			dropped = r.items[r.tail]
			haveDrop = true
			r.tail = (r.tail + 1) % r.capacity
			r.size--
			r.stats.Drop()
			if r.metrics != nil {
				r.metrics.recordDrop()
			}
		}
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++

	r.stats.Write()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordWrite(r.size, r.capacity)
	}

	cb := r.opts.dropCallback
	r.mu.Unlock()

	// Callback runs unlocked so it can re-enter the buffer safely.
	if haveDrop && cb != nil {
		cb(dropped)
	}
	return nil
}

// Read removes and returns the oldest item, or false when empty.
func (r *Ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero // release for GC
	r.tail = (r.tail + 1) % r.capacity
	r.size--

	r.stats.Read()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordRead(r.size, r.capacity)
	}

	return item, true
}

// ReadBatch removes and returns up to max items, oldest first.
func (r *Ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	n := max
	if n > r.size {
		n = r.size
	}

	out := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		out[i] = r.items[r.tail]
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
		r.size--
		r.stats.Read()
	}

	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.updateSize(r.size, r.capacity)
	}

	return out
}

// Peek returns the oldest item without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.tail], true
}

// Size returns the current number of buffered items.
func (r *Ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the fixed maximum number of items.
func (r *Ring[T]) Capacity() int {
	return r.capacity
}

// IsEmpty reports whether the buffer holds no items.
func (r *Ring[T]) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == 0
}

// IsFull reports whether the buffer is at capacity.
func (r *Ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == r.capacity
}

// Clear discards all buffered items, invoking the drop callback for each.
func (r *Ring[T]) Clear() {
	r.mu.Lock()

	var toDrop []T
	if r.opts.dropCallback != nil && r.size > 0 {
		toDrop = make([]T, r.size)
		for i := 0; i < r.size; i++ {
			toDrop[i] = r.items[(r.tail+i)%r.capacity]
		}
	}

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.size = 0

	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.updateSize(0, r.capacity)
	}

	cb := r.opts.dropCallback
	r.mu.Unlock()

	for _, item := range toDrop {
		if cb != nil {
			cb(item)
		}
	}
}

// Stats returns the always-on statistics tracker.
func (r *Ring[T]) Stats() *Statistics {
	return r.stats
}

// Close marks the buffer closed. Buffered items remain readable;
// further writes fail.
func (r *Ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
