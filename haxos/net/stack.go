// Package net implements the per-machine side of the virtual network:
// a port table, synchronous and asynchronous channels, and the switch
// that forwards datagrams between machines by address range.
package net

import (
	"errors"
	"log/slog"
	"sync"

	"hax/haxos/proto"
)

const (
	// EphemeralBase is the first port the stack hands out to sync
	// channels. Explicit binds below it never collide with them.
	EphemeralBase = 49152

	inboxSlots = 64
)

var (
	ErrPortInUse    = errors.New("net: port already bound")
	ErrNoPorts      = errors.New("net: no free ephemeral port")
	ErrClosed       = errors.New("net: channel closed")
	ErrStackClosed  = errors.New("net: stack closed")
	ErrQueryBusy    = errors.New("net: query already in flight")
	ErrSubscribed   = errors.New("net: receive callback already registered")
	ErrPayloadLarge = errors.New("net: payload too large")
)

// Stack is one machine's network endpoint table. A local port number is
// unique among currently open channels on the stack; closing a channel
// releases its port immediately.
type Stack struct {
	addr proto.Addr
	log  *slog.Logger

	mu     sync.Mutex
	ports  map[uint16]chan proto.Datagram
	nextEp uint16
	uplink func(proto.Datagram)
	closed bool
}

// NewStack creates a stack for a machine with the given address.
func NewStack(addr proto.Addr, log *slog.Logger) *Stack {
	if log == nil {
		log = slog.Default()
	}
	return &Stack{
		addr:   addr,
		log:    log.With("addr", addr.String()),
		ports:  make(map[uint16]chan proto.Datagram),
		nextEp: EphemeralBase,
	}
}

// Addr returns the machine address the stack answers for.
func (s *Stack) Addr() proto.Addr { return s.addr }

// SetUplink installs the forwarder for datagrams addressed off-machine.
// Without an uplink such datagrams are dropped.
func (s *Stack) SetUplink(fn func(proto.Datagram)) {
	s.mu.Lock()
	s.uplink = fn
	s.mu.Unlock()
}

// Deliver routes an inbound datagram to the channel bound to its
// destination port, or drops it. Never blocks: a full channel inbox
// also drops.
func (s *Stack) Deliver(d proto.Datagram) {
	s.mu.Lock()
	inbox := s.ports[d.DstPort]
	s.mu.Unlock()

	if inbox == nil {
		s.log.Debug("drop: no listener", "port", d.DstPort, "from", d.Source().String())
		return
	}
	select {
	case inbox <- d.Clone():
	default:
		s.log.Debug("drop: inbox full", "port", d.DstPort)
	}
}

// send stamps the source fields and routes the datagram, locally or via
// the uplink.
func (s *Stack) send(srcPort uint16, d proto.Datagram) error {
	if len(d.Payload) > proto.MaxPayloadBytes {
		return ErrPayloadLarge
	}
	d.SrcAddr = s.addr
	d.SrcPort = srcPort

	if d.DstAddr == s.addr {
		s.Deliver(d)
		return nil
	}

	s.mu.Lock()
	uplink := s.uplink
	s.mu.Unlock()
	if uplink == nil {
		s.log.Debug("drop: no uplink", "to", d.DstAddr.String())
		return nil
	}
	uplink(d)
	return nil
}

func (s *Stack) bind(port uint16) (chan proto.Datagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStackClosed
	}
	if _, ok := s.ports[port]; ok {
		return nil, ErrPortInUse
	}
	inbox := make(chan proto.Datagram, inboxSlots)
	s.ports[port] = inbox
	return inbox, nil
}

func (s *Stack) bindEphemeral() (uint16, chan proto.Datagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, ErrStackClosed
	}
	for i := 0; i < 1<<16-EphemeralBase; i++ {
		port := s.nextEp
		s.nextEp++
		if s.nextEp == 0 {
			s.nextEp = EphemeralBase
		}
		if _, ok := s.ports[port]; ok {
			continue
		}
		inbox := make(chan proto.Datagram, inboxSlots)
		s.ports[port] = inbox
		return port, inbox, nil
	}
	return 0, nil, ErrNoPorts
}

func (s *Stack) release(port uint16) {
	s.mu.Lock()
	delete(s.ports, port)
	s.mu.Unlock()
}

// Close releases every port. Subsequent opens fail.
func (s *Stack) Close() {
	s.mu.Lock()
	s.closed = true
	s.ports = make(map[uint16]chan proto.Datagram)
	s.mu.Unlock()
}

// OpenPorts reports how many ports are currently bound.
func (s *Stack) OpenPorts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ports)
}
