package proto

import (
	"encoding/binary"
	"fmt"
)

// MaxPayloadBytes bounds a single datagram payload.
//
// Larger transfers should be split by the sender; receivers may drop
// anything bigger without telling anyone.
const MaxPayloadBytes = 4096

// HeaderBytes is the fixed size of the encoded datagram header.
const HeaderBytes = 12

// Datagram is the message unit exchanged over channels.
//
// A datagram is immutable after construction by convention: handlers
// receive their own copy of the payload and must not assume writes are
// visible anywhere else.
type Datagram struct {
	SrcAddr Addr
	DstAddr Addr
	SrcPort uint16
	DstPort uint16
	Payload []byte
}

// IsNull reports whether the datagram carries an empty payload.
//
// Empty payload is the session open/close convention between task
// authors; the kernel routes null packets like any other datagram.
func (d Datagram) IsNull() bool { return len(d.Payload) == 0 }

// Source returns the (address, port) key identifying the sender.
func (d Datagram) Source() PeerKey {
	return PeerKey{Addr: d.SrcAddr, Port: d.SrcPort}
}

// Reply returns a datagram addressed back at d's sender with the given
// payload, from the perspective of d's receiver.
func (d Datagram) Reply(payload []byte) Datagram {
	return Datagram{
		SrcAddr: d.DstAddr,
		SrcPort: d.DstPort,
		DstAddr: d.SrcAddr,
		DstPort: d.SrcPort,
		Payload: payload,
	}
}

// Clone deep-copies the datagram so the receiver owns its payload.
func (d Datagram) Clone() Datagram {
	if len(d.Payload) == 0 {
		d.Payload = nil
		return d
	}
	p := make([]byte, len(d.Payload))
	copy(p, d.Payload)
	d.Payload = p
	return d
}

func (d Datagram) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d (%d bytes)", d.SrcAddr, d.SrcPort, d.DstAddr, d.DstPort, len(d.Payload))
}

// PeerKey identifies a remote endpoint by source address and port.
//
// Server tasks use it as the session-by-convention map key; equality is
// the only operation it supports.
type PeerKey struct {
	Addr Addr
	Port uint16
}

func (k PeerKey) String() string {
	return fmt.Sprintf("%s:%d", k.Addr, k.Port)
}

// AppendDatagram appends the wire encoding of d to dst.
//
// Layout: srcAddr u32, dstAddr u32, srcPort u16, dstPort u16, payload.
// All fields big-endian.
func AppendDatagram(dst []byte, d Datagram) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.SrcAddr))
	dst = binary.BigEndian.AppendUint32(dst, uint32(d.DstAddr))
	dst = binary.BigEndian.AppendUint16(dst, d.SrcPort)
	dst = binary.BigEndian.AppendUint16(dst, d.DstPort)
	return append(dst, d.Payload...)
}

// DecodeDatagram parses a wire-encoded datagram.
func DecodeDatagram(b []byte) (Datagram, bool) {
	if len(b) < HeaderBytes || len(b) > HeaderBytes+MaxPayloadBytes {
		return Datagram{}, false
	}
	d := Datagram{
		SrcAddr: Addr(binary.BigEndian.Uint32(b[0:4])),
		DstAddr: Addr(binary.BigEndian.Uint32(b[4:8])),
		SrcPort: binary.BigEndian.Uint16(b[8:10]),
		DstPort: binary.BigEndian.Uint16(b[10:12]),
	}
	if rest := b[HeaderBytes:]; len(rest) > 0 {
		d.Payload = make([]byte, len(rest))
		copy(d.Payload, rest)
	}
	return d, true
}
