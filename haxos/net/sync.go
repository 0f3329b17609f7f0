package net

import (
	"sync"
	"sync/atomic"
	"time"

	"hax/haxos/proto"
)

// SyncChannel is a blocking request/response endpoint bound to a
// kernel-assigned ephemeral port.
type SyncChannel struct {
	stack *Stack
	port  uint16
	inbox chan proto.Datagram

	busy      atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
}

// OpenSync binds a sync channel to a fresh ephemeral port.
func (s *Stack) OpenSync() (*SyncChannel, error) {
	port, inbox, err := s.bindEphemeral()
	if err != nil {
		return nil, err
	}
	return &SyncChannel{
		stack:  s,
		port:   port,
		inbox:  inbox,
		closed: make(chan struct{}),
	}, nil
}

// LocalPort returns the bound ephemeral port.
func (c *SyncChannel) LocalPort() uint16 { return c.port }

// Publish sends d without waiting for any response.
func (c *SyncChannel) Publish(d proto.Datagram) error {
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

// Query sends d and blocks until a response from d's destination
// endpoint arrives or timeout elapses. Absence of a response is an
// expected outcome, reported as ok=false, not an error. Datagrams from
// any other endpoint arriving during the wait are discarded.
//
// At most one query may be in flight per channel; a second concurrent
// call fails with ErrQueryBusy.
func (c *SyncChannel) Query(d proto.Datagram, timeout time.Duration) (proto.Datagram, bool, error) {
	if c == nil {
		return proto.Datagram{}, false, ErrClosed
	}
	if !c.busy.CompareAndSwap(false, true) {
		return proto.Datagram{}, false, ErrQueryBusy
	}
	defer c.busy.Store(false)

	select {
	case <-c.closed:
		return proto.Datagram{}, false, ErrClosed
	default:
	}

	// Drop anything left over from earlier traffic so a stale datagram
	// can never masquerade as the response.
	for {
		select {
		case <-c.inbox:
			continue
		default:
		}
		break
	}

	peer := proto.PeerKey{Addr: d.DstAddr, Port: d.DstPort}
	if err := c.stack.send(c.port, d); err != nil {
		return proto.Datagram{}, false, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case resp := <-c.inbox:
			if resp.Source() != peer {
				continue
			}
			return resp, true, nil
		case <-timer.C:
			return proto.Datagram{}, false, nil
		case <-c.closed:
			return proto.Datagram{}, false, ErrClosed
		}
	}
}

// Close releases the port. Idempotent, and safe on a nil channel so a
// failed open can still be cleaned up unconditionally.
func (c *SyncChannel) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.closed)
		c.stack.release(c.port)
	})
}
