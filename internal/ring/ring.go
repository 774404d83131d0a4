// Package ring provides a bounded channel-like buffer with overwrite-oldest
// semantics. It backs the event bus: producers must never block on a slow
// subscriber, and a subscriber that falls behind loses the oldest events
// first.
package ring

// Channel wraps a buffered Go channel so that sends always succeed: when the
// buffer is full the oldest element is discarded to make room.
//
// Readers consume through C() exactly like a normal channel:
//
//	rc := ring.NewChannel[int](3)
//	for v := range rc.C() {
//	    fmt.Println(v)
//	}
type Channel[T any] struct {
	ch chan T
}

// NewChannel creates a Channel with the given capacity.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		panic("ring: capacity must be > 0")
	}
	return &Channel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can range over it
// until Close.
func (rc *Channel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item, discarding the oldest buffered one if the channel is
// full. It reports whether an element was dropped.
func (rc *Channel[T]) Send(v T) bool {
	dropped := false

	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
			dropped = true
		default:
		}
		rc.ch <- v
	}

	return dropped
}

// TrySend attempts to insert without blocking or dropping.
// Returns false if the buffer is full.
func (rc *Channel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		return true
	default:
		return false
	}
}

// TryReceive attempts a non-blocking receive.
// Returns (zero, false) if no value is ready.
func (rc *Channel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		return
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (rc *Channel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the channel capacity.
func (rc *Channel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. After Close, Send panics.
func (rc *Channel[T]) Close() {
	close(rc.ch)
}
