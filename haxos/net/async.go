package net

import (
	"sync"

	"hax/haxos/proto"
)

// AsyncChannel is a fire-and-forget endpoint bound to an explicit local
// port, with an at-most-one receive subscription.
type AsyncChannel struct {
	stack *Stack
	port  uint16
	inbox chan proto.Datagram

	mu     sync.Mutex
	onRecv func(proto.Datagram)
	gate   sync.Locker

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenAsync binds an async channel to port. The port must be free.
func (s *Stack) OpenAsync(port uint16) (*AsyncChannel, error) {
	inbox, err := s.bind(port)
	if err != nil {
		return nil, err
	}
	c := &AsyncChannel{
		stack:  s,
		port:   port,
		inbox:  inbox,
		closed: make(chan struct{}),
	}
	go c.dispatch()
	return c, nil
}

// LocalPort returns the bound port.
func (c *AsyncChannel) LocalPort() uint16 { return c.port }

// SetDispatchLock makes the receive callback run under l, so the
// kernel can serialize it with the owning task's other handlers.
// Must be called before Subscribe.
func (c *AsyncChannel) SetDispatchLock(l sync.Locker) {
	c.mu.Lock()
	c.gate = l
	c.mu.Unlock()
}

// Subscribe registers the receive callback. It is invoked for every
// datagram arriving on the port, in arrival order, never concurrently
// with itself. Datagrams arriving while no callback is registered are
// dropped. A second Subscribe fails with ErrSubscribed.
func (c *AsyncChannel) Subscribe(onRecv func(proto.Datagram)) error {
	if c == nil {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onRecv != nil {
		return ErrSubscribed
	}
	c.onRecv = onRecv
	return nil
}

// Publish sends d without waiting.
func (c *AsyncChannel) Publish(d proto.Datagram) error {
	if c == nil {
		return ErrClosed
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	return c.stack.send(c.port, d)
}

// dispatch is the channel's single delivery goroutine.
func (c *AsyncChannel) dispatch() {
	for {
		select {
		case <-c.closed:
			return
		case d := <-c.inbox:
			c.mu.Lock()
			fn := c.onRecv
			gate := c.gate
			c.mu.Unlock()
			if fn == nil {
				continue
			}
			if gate != nil {
				gate.Lock()
			}
			// The channel may have been closed while waiting for the
			// gate; a stopped task must not see one more callback.
			select {
			case <-c.closed:
				if gate != nil {
					gate.Unlock()
				}
				return
			default:
			}
			fn(d)
			if gate != nil {
				gate.Unlock()
			}
		}
	}
}

// Close releases the port and stops delivery. Idempotent, and safe on
// a nil channel so a failed open can still be cleaned up.
func (c *AsyncChannel) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.closed)
		c.stack.release(c.port)
	})
}
