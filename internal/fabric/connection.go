// Package fabric implements the physical substrate tokens travel on: one
// FIFO queue per connection, unbounded by default, blocking the producer
// when a finite capacity is exhausted.
//
// Each connection has exactly one producer and one consumer at any moment
// (the resolver rejects fan-in, and the scheduler serializes firings per
// actor), so the queue only needs to be safe for that pair.
package fabric

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/weft/pkg/token"
)

// ErrClosed is returned from Enqueue once the connection has been shut down.
var ErrClosed = errors.New("connection closed")

// Connection is an ordered token queue between one output port and one input
// port. The zero value is not usable; use NewConnection.
type Connection struct {
	mu       sync.Mutex
	buf      []token.Token
	capacity int
	closed   bool

	// slotFreed carries at most one pending wakeup for a producer blocked on
	// a full bounded queue. A stale wakeup only costs one extra loop.
	slotFreed chan struct{}
	done      chan struct{}

	// notify, when set, is signalled after every successful enqueue so the
	// consumer side can re-check for pending tokens. Sends never block; the
	// channel coalesces bursts into a single wakeup.
	notify chan<- struct{}
}

// NewConnection creates a connection. capacity <= 0 means unbounded.
func NewConnection(capacity int) *Connection {
	if capacity < 0 {
		capacity = 0
	}
	return &Connection{
		capacity:  capacity,
		slotFreed: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Capacity returns the configured bound, zero for unbounded.
func (c *Connection) Capacity() int { return c.capacity }

// SetNotify registers a wakeup channel signalled on each enqueued token.
// Deliveries can happen mid-firing or from outside a firing entirely, so the
// consumer cannot rely on producer completion to learn about them.
func (c *Connection) SetNotify(ch chan<- struct{}) {
	c.mu.Lock()
	c.notify = ch
	c.mu.Unlock()
}

// Enqueue appends a token, blocking while a bounded queue is full. The block
// is cooperative: the calling goroutine parks until the consumer frees a
// slot, the context is cancelled, or the connection is closed. Tokens are
// never dropped on backpressure.
func (c *Connection) Enqueue(ctx context.Context, tok token.Token) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.capacity == 0 || len(c.buf) < c.capacity {
			c.buf = append(c.buf, tok)
			notify := c.notify
			c.mu.Unlock()
			if notify != nil {
				select {
				case notify <- struct{}{}:
				default:
				}
			}
			return nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case <-c.slotFreed:
		}
	}
}

// TryDequeue removes and returns the oldest token, if any.
func (c *Connection) TryDequeue() (token.Token, bool) {
	c.mu.Lock()
	if len(c.buf) == 0 {
		c.mu.Unlock()
		return token.Token{}, false
	}
	tok := c.buf[0]
	c.buf = c.buf[1:]
	if len(c.buf) == 0 {
		c.buf = nil
	}
	c.mu.Unlock()

	select {
	case c.slotFreed <- struct{}{}:
	default:
	}
	return tok, true
}

// Pending returns the number of queued tokens.
func (c *Connection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Close shuts the connection down. Queued tokens are discarded and any
// blocked Enqueue unblocks with ErrClosed. Close is idempotent.
func (c *Connection) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.buf = nil
		close(c.done)
	}
	c.mu.Unlock()
}
