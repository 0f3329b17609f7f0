package net

import (
	"log/slog"
	"sync"

	"hax/haxos/proto"
)

// Switch forwards datagrams between attached stacks by address range.
// It stands in for the data-center topology: attached machines get a
// host route, and wider CIDR routes can point at other switches.
type Switch struct {
	log *slog.Logger

	mu     sync.Mutex
	routes []route
}

type route struct {
	prefix  proto.Prefix
	deliver func(proto.Datagram)
}

func NewSwitch(log *slog.Logger) *Switch {
	if log == nil {
		log = slog.Default()
	}
	return &Switch{log: log}
}

// Attach plugs a stack into the switch: the stack's uplink now points
// at the switch, and the switch learns a host route for its address.
func (sw *Switch) Attach(s *Stack) {
	sw.AddRoute(proto.Prefix{Addr: s.Addr(), Bits: 32}, s.Deliver)
	s.SetUplink(sw.Forward)
}

// AddRoute registers a CIDR range. Longest prefix wins on forward.
func (sw *Switch) AddRoute(prefix proto.Prefix, deliver func(proto.Datagram)) {
	sw.mu.Lock()
	sw.routes = append(sw.routes, route{prefix: prefix, deliver: deliver})
	sw.mu.Unlock()
}

// Forward routes d to the longest matching range, or drops it.
func (sw *Switch) Forward(d proto.Datagram) {
	sw.mu.Lock()
	var best *route
	for i := range sw.routes {
		r := &sw.routes[i]
		if !r.prefix.Contains(d.DstAddr) {
			continue
		}
		if best == nil || r.prefix.Bits > best.prefix.Bits {
			best = r
		}
	}
	sw.mu.Unlock()

	if best == nil {
		sw.log.Debug("drop: no route", "to", d.DstAddr.String())
		return
	}
	best.deliver(d)
}
