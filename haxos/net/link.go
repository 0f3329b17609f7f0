package net

import (
	"log/slog"
	"sync"

	"hax/haxos/proto"
)

// Link carries datagrams for a remote address range over a framed byte
// transport, one wire-encoded datagram per frame. It is the boundary
// between this switch and anything out of process: another simulator,
// a capture file, a socket.
type Link struct {
	sw   *Switch
	log  *slog.Logger
	send func(frame []byte) error

	mu  sync.Mutex
	buf []byte
}

// AddLink routes prefix over a frame transport. Outbound datagrams are
// wire-encoded and handed to send; frames arriving from the far end go
// through HandleFrame.
func (sw *Switch) AddLink(prefix proto.Prefix, send func(frame []byte) error) *Link {
	l := &Link{sw: sw, log: sw.log.With("link", prefix.String()), send: send}
	sw.AddRoute(prefix, l.forward)
	return l
}

func (l *Link) forward(d proto.Datagram) {
	l.mu.Lock()
	l.buf = proto.AppendDatagram(l.buf[:0], d)
	err := l.send(l.buf)
	l.mu.Unlock()
	if err != nil {
		l.log.Debug("drop: link send", "error", err)
	}
}

// HandleFrame decodes one inbound frame and forwards it through the
// switch. Malformed frames are dropped.
func (l *Link) HandleFrame(frame []byte) {
	d, ok := proto.DecodeDatagram(frame)
	if !ok {
		l.log.Debug("drop: bad frame", "bytes", len(frame))
		return
	}
	l.sw.Forward(d)
}
