package proto

import (
	"fmt"
	"strings"
)

// Addr is a 32-bit network address in the flat HaxOS address space.
type Addr uint32

// parseDecimal parses p as bare decimal digits, rejecting signs,
// spaces, and anything else strconv would tolerate.
func parseDecimal(p string, max int) (int, bool) {
	if p == "" || len(p) > 3 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, n <= max
}

// ParseAddr parses a dotted-quad address like "10.0.0.5".
func ParseAddr(s string) (Addr, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, false
	}
	var a uint32
	for _, p := range parts {
		n, ok := parseDecimal(p, 255)
		if !ok {
			return 0, false
		}
		a = a<<8 | uint32(n)
	}
	return Addr(a), true
}

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
}

// Prefix is a CIDR address range, used by switch routing tables.
type Prefix struct {
	Addr Addr
	Bits uint8
}

// ParsePrefix parses CIDR notation like "10.0.0.0/8".
func ParsePrefix(s string) (Prefix, bool) {
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return Prefix{}, false
	}
	addr, ok := ParseAddr(s[:slash])
	if !ok {
		return Prefix{}, false
	}
	bits, ok := parseDecimal(s[slash+1:], 32)
	if !ok {
		return Prefix{}, false
	}
	p := Prefix{Addr: addr, Bits: uint8(bits)}
	return Prefix{Addr: addr & p.mask(), Bits: uint8(bits)}, true
}

func (p Prefix) mask() Addr {
	if p.Bits == 0 {
		return 0
	}
	return Addr(^uint32(0) << (32 - p.Bits))
}

// Contains reports whether addr falls inside the prefix range.
func (p Prefix) Contains(addr Addr) bool {
	return addr&p.mask() == p.Addr&p.mask()
}

func (p Prefix) String() string {
	return fmt.Sprintf("%s/%d", p.Addr, p.Bits)
}
