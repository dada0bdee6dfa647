package relay

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// subscriberMailbox is the broker-to-actor delivery channel for one
// registered subscriber. It is a channel-backed mailbox providing
// thread-safe send and receive operations: a read lock is held for the
// full duration of a blocking send so Close can never race a send into a
// closed channel.
type subscriberMailbox[E Event] struct {
	ch chan *Envelope[E]

	closed atomic.Bool

	// mu protects send operations against a concurrent Close.
	mu sync.RWMutex

	closeOnce sync.Once
}

// newSubscriberMailbox creates a mailbox with the given buffer capacity. A
// non-positive capacity is coerced to 1 so the mailbox is always buffered.
func newSubscriberMailbox[E Event](capacity int) *subscriberMailbox[E] {
	if capacity <= 0 {
		capacity = 1
	}
	return &subscriberMailbox[E]{
		ch: make(chan *Envelope[E], capacity),
	}
}

// send blocks until env is accepted, ctx is cancelled, or the mailbox is
// closed concurrently.
func (m *subscriberMailbox[E]) send(ctx context.Context, env *Envelope[E]) bool {
	if ctx.Err() != nil {
		return false
	}

	// Holding the read lock for the whole operation is safe because Close
	// must acquire the write lock before closing the channel, and the
	// write lock cannot be acquired while any read lock is held.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

// trySend attempts a non-blocking send, returning false if the mailbox is
// full or closed.
func (m *subscriberMailbox[E]) trySend(env *Envelope[E]) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// receive returns an iterator over envelopes in the mailbox, yielding as
// they arrive and stopping when ctx is cancelled or the mailbox is closed
// and drained.
func (m *subscriberMailbox[E]) receive(ctx context.Context) iter.Seq[*Envelope[E]] {
	return func(yield func(*Envelope[E]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// tryReceive attempts one non-blocking receive, reporting false if the
// mailbox is empty.
func (m *subscriberMailbox[E]) tryReceive() (*Envelope[E], bool) {
	select {
	case env, ok := <-m.ch:
		if !ok {
			return nil, false
		}
		return env, true
	default:
		return nil, false
	}
}

// close closes the mailbox, preventing further sends. Safe to call more than
// once; only the first call has an effect.
func (m *subscriberMailbox[E]) close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.ch)
	})
}

// isClosed reports whether the mailbox has been closed.
func (m *subscriberMailbox[E]) isClosed() bool {
	return m.closed.Load()
}

// drain returns an iterator over any remaining buffered envelopes. It is a
// no-op unless the mailbox has already been closed.
func (m *subscriberMailbox[E]) drain() iter.Seq[*Envelope[E]] {
	return func(yield func(*Envelope[E]) bool) {
		if !m.isClosed() {
			return
		}
		for {
			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}
			default:
				return
			}
		}
	}
}

// capacity returns the mailbox's fixed buffer size.
func (m *subscriberMailbox[E]) capacity() int {
	return cap(m.ch)
}

// len returns the number of envelopes currently buffered.
func (m *subscriberMailbox[E]) len() int {
	return len(m.ch)
}

// isEmpty reports whether the mailbox is closed or holds zero buffered
// envelopes — the Go analogue of the source runtime's
// `sender.capacity() == sender.max_capacity()` drain check.
func (m *subscriberMailbox[E]) isEmpty() bool {
	return m.isClosed() || m.len() == 0
}
