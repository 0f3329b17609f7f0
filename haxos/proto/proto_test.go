package proto

import (
	"bytes"
	"testing"
)

func TestParseAddr(t *testing.T) {
	a, ok := ParseAddr("10.0.0.5")
	if !ok {
		t.Fatalf("ParseAddr failed")
	}
	if got := a.String(); got != "10.0.0.5" {
		t.Fatalf("String()=%q, want 10.0.0.5", got)
	}
	if a != Addr(10<<24|5) {
		t.Fatalf("addr value=%#x", uint32(a))
	}

	bad := []string{"", "10.0.0", "10.0.0.5.1", "10.0.0.256", "10.0.0.-1", "10.0.0.+5", "10.0.0. 5", "a.b.c.d", "10..0.5", "010.0.0.1234"}
	for _, s := range bad {
		if _, ok := ParseAddr(s); ok {
			t.Fatalf("ParseAddr(%q) accepted", s)
		}
	}
}

func TestPrefixContains(t *testing.T) {
	p, ok := ParsePrefix("10.0.0.0/8")
	if !ok {
		t.Fatalf("ParsePrefix failed")
	}

	in, _ := ParseAddr("10.200.1.1")
	out, _ := ParseAddr("11.0.0.1")
	if !p.Contains(in) {
		t.Fatalf("%s should contain %s", p, in)
	}
	if p.Contains(out) {
		t.Fatalf("%s should not contain %s", p, out)
	}

	// Non-canonical base addresses are masked on parse.
	p2, ok := ParsePrefix("10.9.9.9/8")
	if !ok || p2.Addr.String() != "10.0.0.0" {
		t.Fatalf("prefix base not masked: %v %v", p2, ok)
	}

	all, ok := ParsePrefix("0.0.0.0/0")
	if !ok || !all.Contains(out) {
		t.Fatalf("/0 should contain everything")
	}

	if _, ok := ParsePrefix("10.0.0.0"); ok {
		t.Fatalf("missing slash accepted")
	}
	if _, ok := ParsePrefix("10.0.0.0/33"); ok {
		t.Fatalf("bits out of range accepted")
	}
	if _, ok := ParsePrefix("10.0.0.0/+8"); ok {
		t.Fatalf("signed bits accepted")
	}
}

func TestDatagramWireRoundTrip(t *testing.T) {
	src, _ := ParseAddr("10.0.0.5")
	dst, _ := ParseAddr("10.0.0.9")
	d := Datagram{SrcAddr: src, SrcPort: 4000, DstAddr: dst, DstPort: 6666, Payload: []byte("hi")}

	b := AppendDatagram(nil, d)
	if len(b) != HeaderBytes+2 {
		t.Fatalf("encoded length=%d", len(b))
	}

	got, ok := DecodeDatagram(b)
	if !ok {
		t.Fatalf("DecodeDatagram failed")
	}
	if got.SrcAddr != d.SrcAddr || got.SrcPort != d.SrcPort || got.DstAddr != d.DstAddr || got.DstPort != d.DstPort {
		t.Fatalf("header mismatch: %v", got)
	}
	if !bytes.Equal(got.Payload, d.Payload) {
		t.Fatalf("payload mismatch: %q", got.Payload)
	}

	if _, ok := DecodeDatagram(b[:HeaderBytes-1]); ok {
		t.Fatalf("short buffer accepted")
	}

	// Null packet round-trips with a nil payload.
	null, ok := DecodeDatagram(AppendDatagram(nil, Datagram{SrcAddr: src, DstAddr: dst, DstPort: 6666}))
	if !ok || !null.IsNull() {
		t.Fatalf("null packet lost: %v %v", null, ok)
	}
}

func TestDatagramReply(t *testing.T) {
	src, _ := ParseAddr("10.0.0.5")
	dst, _ := ParseAddr("10.0.0.9")
	d := Datagram{SrcAddr: src, SrcPort: 4000, DstAddr: dst, DstPort: 7, Payload: []byte("ping")}

	r := d.Reply([]byte("pong"))
	if r.DstAddr != src || r.DstPort != 4000 || r.SrcAddr != dst || r.SrcPort != 7 {
		t.Fatalf("reply misaddressed: %v", r)
	}
	if d.Source() != (PeerKey{Addr: src, Port: 4000}) {
		t.Fatalf("source key: %v", d.Source())
	}
	if got := d.Source().String(); got != "10.0.0.5:4000" {
		t.Fatalf("peer tag=%q", got)
	}
}
